package platforms

import "context"

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Message struct {
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Footer      string  `json:"footer,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}
