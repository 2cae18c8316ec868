// Command l14 is a desktop inspector that shows a document's markup tree,
// its box tree and a drawn outline side by side.
package main

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"l14box/internal/config"
	"l14box/internal/observability"
)

func main() {
	cfg := config.NewDefaultConfig()
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger().Named("inspector")

	a := app.New()
	w := a.NewWindow("l14 inspector")
	w.Resize(fyne.NewSize(1200, 800))

	markup := readOnlyText()
	boxes := readOnlyText()
	outline := canvas.NewImageFromImage(nil)
	outline.FillMode = canvas.ImageFillOriginal
	status := widget.NewLabel("Enter a file path or URL and press Enter")

	insp := newInspector(cfg, logger)
	input := widget.NewEntry()
	input.SetPlaceHolder("page.html or https://example.com")
	input.OnSubmitted = func(target string) {
		status.SetText("Loading " + target + "...")
		go func() {
			v, err := insp.inspect(context.Background(), target)
			fyne.Do(func() {
				if err != nil {
					status.SetText("Error: " + err.Error())
					return
				}
				markup.SetText(v.Markup)
				boxes.SetText(v.Boxes)
				outline.Image = v.Outline
				outline.Refresh()
				status.SetText(v.Summary)
				logger.Debug("inspected", zap.String("target", target), zap.String("summary", v.Summary))
				w.SetTitle(fmt.Sprintf("l14 inspector: %s", target))
			})
		}()
	}

	tabs := container.NewAppTabs(
		container.NewTabItem("Trees", container.NewHSplit(
			container.NewBorder(widget.NewLabel("Markup"), nil, nil, nil, markup),
			container.NewBorder(widget.NewLabel("Boxes"), nil, nil, nil, boxes),
		)),
		container.NewTabItem("Outline", container.NewScroll(outline)),
	)
	w.SetContent(container.NewBorder(input, status, nil, nil, tabs))
	w.Canvas().Focus(input)
	w.ShowAndRun()
}

func readOnlyText() *widget.Entry {
	e := widget.NewMultiLineEntry()
	e.TextStyle = fyne.TextStyle{Monospace: true}
	e.Wrapping = fyne.TextWrapOff
	e.Disable()
	return e
}
