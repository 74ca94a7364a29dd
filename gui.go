//go:build gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"fable/internal/config"
	"fable/internal/engine"
	"fable/internal/session"
)

func main() {
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	showTOC := flag.Bool("toc", false, "Show table of contents at startup")
	freshStart := flag.Bool("fresh", false, "Ignore saved reading position")
	configPath := flag.String("config", config.DefaultPath(), "Config file location")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Fable - GUI Book Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  fable [options] <file or URL>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("fable %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No book provided.")
		fmt.Fprintln(os.Stderr, "Try: fable -h")
		os.Exit(1)
	}
	source := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	rd := newHost(source, cfg, *freshStart, log)

	a := app.New()
	w := a.NewWindow("fable")

	statusLabel := widget.NewLabel("Opening " + source + "...")
	statusLabel.Alignment = fyne.TextAlignCenter

	controlsLabel := widget.NewLabel("←/→: page  +/-: font  T: contents  Q: quit")
	controlsLabel.Alignment = fyne.TextAlignCenter

	contentLabel := widget.NewLabel("")
	contentLabel.Wrapping = fyne.TextWrapWord

	flat := []tocItem{}
	tocList := widget.NewList(
		func() int { return len(flat) },
		func() fyne.CanvasObject { return widget.NewLabel("Title") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			item := flat[id]
			label := obj.(*widget.Label)
			label.SetText(strings.Repeat("  ", item.level) + item.entry.Title)
		},
	)

	tocContainer := container.NewBorder(
		widget.NewLabel("Table of Contents"),
		widget.NewLabel("Click to jump • T to close"),
		nil, nil,
		tocList,
	)

	readingContent := container.NewBorder(
		statusLabel,
		controlsLabel,
		nil, nil,
		container.NewScroll(contentLabel),
	)

	split := container.NewHSplit(tocContainer, readingContent)
	split.Offset = 0.33
	tocVisible := *showTOC
	if !tocVisible {
		tocContainer.Hide()
	}

	var closeOnce sync.Once
	done := make(chan struct{})

	updateDisplay := func() {
		switch rd.ctrl.State() {
		case session.StateFailed:
			msg := "Something went wrong."
			if f := rd.ctrl.Failure(); f != nil {
				msg = f.Message()
			}
			statusLabel.SetText(msg)
			contentLabel.SetText("")
		case session.StateReady:
			page := rd.ctrl.Page()
			progress := ""
			if loc := rd.ctrl.CurrentLocation(); loc != nil {
				progress = fmt.Sprintf(" | %.0f%%", loc.TotalProgression*100)
			}
			statusLabel.SetText(fmt.Sprintf("%s | Page %d/%d%s | Font: %.2fx",
				page.ChapterTitle, page.Number, page.Count, progress,
				rd.ctrl.Preferences().FontScale))
			contentLabel.SetText(page.Text)
		}
	}

	showHideTOC := func(visible bool) {
		tocVisible = visible
		if visible {
			tocContainer.Show()
		} else {
			tocContainer.Hide()
		}
		split.Refresh()
	}

	tocList.OnSelected = func(id widget.ListItemID) {
		if id >= len(flat) {
			return
		}
		entry := flat[id].entry
		go func() {
			_ = rd.ctrl.NavigateTo(context.Background(), entry)
			fyne.Do(func() { showHideTOC(false) })
		}()
	}

	applyPrefs := func(p engine.Preferences) {
		go func() {
			_ = rd.ctrl.ApplyPreferences(context.Background(), p)
			fyne.Do(updateDisplay)
		}()
	}

	quit := func() {
		closeOnce.Do(func() {
			close(done)
			rd.finish()
		})
		a.Quit()
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeyRight, fyne.KeySpace:
			go func() {
				_ = rd.ctrl.PageForward(context.Background())
			}()
		case fyne.KeyLeft:
			go func() {
				_ = rd.ctrl.PageBack(context.Background())
			}()
		case fyne.KeyT:
			if len(rd.ctrl.TOC()) > 0 {
				showHideTOC(!tocVisible)
			}
		case fyne.KeyF:
			w.SetFullScreen(!w.FullScreen())
		case fyne.KeyEscape, fyne.KeyQ:
			quit()
		}
	})

	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case '+', '=':
			applyPrefs(rd.ctrl.Preferences().Larger())
		case '-':
			applyPrefs(rd.ctrl.Preferences().Smaller())
		}
	})

	// Session load and event pump.
	go func() {
		_ = rd.ctrl.Load(context.Background(), rd.source, rd.initial)
		fyne.Do(func() {
			flat = flattenTOC(rd.ctrl.TOC(), 0)
			tocList.Refresh()
			updateDisplay()
		})
		for {
			select {
			case <-done:
				return
			case ev, ok := <-rd.ctrl.Events():
				if !ok {
					return
				}
				if ev.Kind == engine.EventLocationChanged {
					fyne.Do(updateDisplay)
				}
			}
		}
	}()

	w.SetOnClosed(func() {
		closeOnce.Do(func() {
			close(done)
			rd.finish()
		})
	})

	w.Resize(fyne.NewSize(800, 600))
	w.SetContent(split)
	w.ShowAndRun()
}
