// Package chat implements the JSON chat-component document exchanged
// as the payload of status descriptions and disconnect messages.
package chat

import "encoding/json"

// Document is a single chat component. The style flags are always
// serialized; only Color and Extra are omitted when absent.
type Document struct {
	Text          string      `json:"text"`
	Bold          bool        `json:"bold"`
	Italic        bool        `json:"italic"`
	Underlined    bool        `json:"underlined"`
	Strikethrough bool        `json:"strikethrough"`
	Obfuscated    bool        `json:"obfuscated"`
	Color         string      `json:"color,omitempty"`
	Extra         []*Document `json:"extra,omitempty"`
}

// Plain builds an undecorated chat document carrying text.
func Plain(text string) Document {
	return Document{Text: text}
}

// Colored builds a chat document carrying text styled with a single
// top-level color.
func Colored(text, color string) Document {
	return Document{Text: text, Color: color}
}

// String renders the document as its wire JSON form.
func (d Document) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return d.Text
	}
	return string(b)
}
