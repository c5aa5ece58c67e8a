// Package htmlimport parses Telegram Desktop's exported HTML history files
// into source messages. It is the offline fallback for channels the API
// cannot reach: the parsed messages flow through the same extraction and
// storage path as scraped ones.
package htmlimport

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"telelink/pkg/telegram"
)

const exportDateLayout = "02.01.2006 15:04:05"

// ParseFile parses one exported HTML file. Messages are returned in
// ascending id order regardless of the export's layout.
func ParseFile(path string) ([]telegram.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses Telegram Desktop export HTML from r.
func Parse(r io.Reader) ([]telegram.Message, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export HTML: %w", err)
	}

	var messages []telegram.Message
	walk(doc, func(n *html.Node) {
		if !isMessageDiv(n) {
			return
		}
		msg, ok := parseMessage(n)
		if ok {
			messages = append(messages, msg)
		}
	})

	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages, nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func isMessageDiv(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "div" {
		return false
	}
	classes := strings.Fields(attr(n, "class"))
	var isMessage, isDefault bool
	for _, c := range classes {
		switch c {
		case "message":
			isMessage = true
		case "default":
			isDefault = true
		}
	}
	return isMessage && isDefault
}

func parseMessage(n *html.Node) (telegram.Message, bool) {
	id := attr(n, "id")
	if !strings.HasPrefix(id, "message") {
		return telegram.Message{}, false
	}
	msgID, err := strconv.ParseInt(strings.TrimPrefix(id, "message"), 10, 64)
	if err != nil {
		return telegram.Message{}, false
	}

	msg := telegram.Message{ID: msgID}

	walk(n, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		classes := attr(c, "class")
		switch {
		case c.Data == "div" && hasClass(classes, "date"):
			if title := attr(c, "title"); title != "" && msg.Date.IsZero() {
				msg.Date = parseExportDate(title)
			}
		case c.Data == "div" && hasClass(classes, "text") && msg.Text == "":
			text, entities := flattenText(c)
			msg.Text = text
			msg.Entities = entities
		case c.Data == "div" && hasClass(classes, "bot_button"):
			if btn, ok := parseButton(c); ok {
				msg.Buttons = append(msg.Buttons, btn)
			}
		}
	})

	return msg, true
}

// flattenText collects the visible text of a message body and rebuilds the
// link entities from inline anchors: an anchor whose label equals its href
// becomes a plain URL entity, anything else a masked link.
func flattenText(n *html.Node) (string, []telegram.Entity) {
	var sb strings.Builder
	var entities []telegram.Entity
	runes := 0

	var rec func(*html.Node)
	rec = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			text := strings.ReplaceAll(c.Data, "\n", " ")
			sb.WriteString(text)
			runes += len([]rune(text))
			return
		case html.ElementNode:
			switch c.Data {
			case "br":
				sb.WriteString("\n")
				runes++
				return
			case "a":
				href := attr(c, "href")
				label := textContent(c)
				start := runes
				sb.WriteString(label)
				runes += len([]rune(label))
				if href != "" && len(label) > 0 {
					kind := telegram.EntityTextURL
					url := href
					if label == href {
						kind = telegram.EntityURL
						url = ""
					}
					entities = append(entities, telegram.Entity{
						Kind:   kind,
						Offset: start,
						Length: runes - start,
						URL:    url,
					})
				}
				return
			}
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			rec(gc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rec(c)
	}

	return strings.TrimSpace(sb.String()), adjustForTrim(sb.String(), entities)
}

// adjustForTrim shifts entity offsets left by the amount of leading
// whitespace removed from the flattened text.
func adjustForTrim(raw string, entities []telegram.Entity) []telegram.Entity {
	trimmed := strings.TrimLeft(raw, " \n\t")
	shift := len([]rune(raw)) - len([]rune(trimmed))
	if shift == 0 {
		return entities
	}
	adjusted := make([]telegram.Entity, 0, len(entities))
	for _, e := range entities {
		e.Offset -= shift
		if e.Offset >= 0 {
			adjusted = append(adjusted, e)
		}
	}
	return adjusted
}

func parseButton(n *html.Node) (telegram.Button, bool) {
	var btn telegram.Button
	walk(n, func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "a" && btn.URL == "" {
			btn.URL = attr(c, "href")
			btn.Label = strings.TrimSpace(textContent(c))
		}
	})
	return btn, btn.URL != ""
}

// parseExportDate parses the export's "26.08.2023 14:22:11 UTC+03:00"
// titles, tolerating a missing timezone suffix.
func parseExportDate(title string) time.Time {
	title = strings.TrimSpace(title)
	if len(title) >= len(exportDateLayout) {
		if t, err := time.Parse(exportDateLayout, title[:len(exportDateLayout)]); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(sb.String())
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
