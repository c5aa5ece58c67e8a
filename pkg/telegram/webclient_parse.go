package telegram

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// previewPage is one parsed t.me/s response.
type previewPage struct {
	title    string
	messages []Message
	notFound bool
}

// parsePreviewPage extracts the channel title and message widgets from a
// preview page. Message ids come from the data-post attribute
// ("username/123"), dates from the <time datetime> attribute, and link
// entities are rebuilt from the anchors inside the text widget.
func parsePreviewPage(r io.Reader) (*previewPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &previewPage{}
	var hasChannelInfo bool

	walkNodes(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		classes := nodeAttr(n, "class")
		switch {
		case hasHTMLClass(classes, "tgme_channel_info"):
			hasChannelInfo = true
		case hasHTMLClass(classes, "tgme_channel_info_header_title"):
			if page.title == "" {
				page.title = nodeText(n)
			}
		case n.Data == "meta" && nodeAttr(n, "property") == "og:title":
			if page.title == "" {
				page.title = nodeAttr(n, "content")
			}
		case hasHTMLClass(classes, "tgme_widget_message") && nodeAttr(n, "data-post") != "":
			if msg, ok := parsePreviewMessage(n); ok {
				page.messages = append(page.messages, msg)
			}
		}
	})

	// A nonexistent username renders a bare landing page with neither the
	// channel sidebar nor any message widgets.
	page.notFound = !hasChannelInfo && len(page.messages) == 0 && page.title == ""
	return page, nil
}

func parsePreviewMessage(n *html.Node) (Message, bool) {
	post := nodeAttr(n, "data-post")
	idx := strings.LastIndexByte(post, '/')
	if idx < 0 {
		return Message{}, false
	}
	id, err := strconv.ParseInt(post[idx+1:], 10, 64)
	if err != nil {
		return Message{}, false
	}

	msg := Message{ID: id}
	walkNodes(n, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		classes := nodeAttr(c, "class")
		switch {
		case c.Data == "time" && nodeAttr(c, "datetime") != "":
			if msg.Date.IsZero() {
				if t, err := time.Parse(time.RFC3339, nodeAttr(c, "datetime")); err == nil {
					msg.Date = t.UTC()
				}
			}
		case hasHTMLClass(classes, "tgme_widget_message_text") && msg.Text == "":
			msg.Text, msg.Entities = flattenPreviewText(c)
		}
	})
	return msg, true
}

// flattenPreviewText rebuilds the message text and its link entities from
// the widget markup. Anchors whose visible label matches their href become
// plain URL entities; anchors with a different label (including labels the
// preview truncated with an ellipsis) become masked links carrying the href.
func flattenPreviewText(n *html.Node) (string, []Entity) {
	var sb strings.Builder
	var entities []Entity
	runes := 0

	var rec func(*html.Node)
	rec = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			runes += len([]rune(c.Data))
			return
		case html.ElementNode:
			switch c.Data {
			case "br":
				sb.WriteString("\n")
				runes++
				return
			case "a":
				href := nodeAttr(c, "href")
				label := nodeText(c)
				start := runes
				sb.WriteString(label)
				runes += len([]rune(label))
				if href != "" && label != "" {
					e := Entity{Kind: EntityTextURL, Offset: start, Length: runes - start, URL: href}
					if label == href {
						e.Kind = EntityURL
						e.URL = ""
					}
					entities = append(entities, e)
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

	return sb.String(), entities
}

func walkNodes(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, visit)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	walkNodes(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(sb.String())
}

func nodeAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasHTMLClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
