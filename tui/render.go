// Package tui renders the checklist in the terminal, either as a static
// panel or as an interactive list backed by the checklist API.
package tui

import (
	"fmt"
	"strings"

	"github.com/c360studio/checklist/storage"
)

const progressWidth = 20

// Render returns the checklist as a bordered panel with counts and a
// progress bar.
func Render(items []storage.Item) string {
	var b strings.Builder
	b.WriteString(header(items))
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(mutedStyle.Render("No items."))
		return panelStyle.Render(b.String())
	}

	for _, it := range items {
		b.WriteString(line(it))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(progressBar(items, progressWidth))
	return panelStyle.Render(b.String())
}

func header(items []storage.Item) string {
	done, pending := stats(items)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Checklist"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), len(items),
	)
}

func line(it storage.Item) string {
	if it.Checked {
		return successStyle.Render(boxChecked) + " " + doneStyle.Render(it.Name)
	}
	return mutedStyle.Render(boxUnchecked) + " " + it.Name
}

func progressBar(items []storage.Item, width int) string {
	done, _ := stats(items)
	filled := 0
	if len(items) > 0 {
		filled = done * width / len(items)
	}
	bar := successStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, done, len(items))
}

func stats(items []storage.Item) (done, pending int) {
	for _, it := range items {
		if it.Checked {
			done++
		} else {
			pending++
		}
	}
	return
}
