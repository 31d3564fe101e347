package web

import (
	"time"

	"product-studio-ai/internal/studio"
)

type apiError struct {
	Error string `json:"error"`
}

type generateRequest struct {
	Instruction  string `json:"instruction"`
	AreaSelected bool   `json:"area_selected"`
}

type revertRequest struct {
	Index *int `json:"index"`
}

type templateView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AspectRatio string `json:"aspect_ratio"`
}

type sessionView struct {
	ID        string     `json:"id"`
	HasSource bool       `json:"has_source"`
	MimeType  string     `json:"mime_type,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Nodes     []nodeView `json:"nodes"`
}

type nodeView struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	AspectRatio  string        `json:"aspect_ratio"`
	Status       string        `json:"status"`
	ImageURL     string        `json:"image_url,omitempty"`
	CustomPrompt string        `json:"custom_prompt,omitempty"`
	History      []historyView `json:"history"`
}

type historyView struct {
	Index        int       `json:"index"`
	ImageURL     string    `json:"image_url"`
	CustomPrompt string    `json:"custom_prompt,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func newSessionView(id string, sess *studio.Session) sessionView {
	view := sessionView{ID: id}
	if src, ok := sess.Source(); ok {
		view.HasSource = true
		view.MimeType = src.MimeType
		view.Filename = src.Filename
	}

	nodes := sess.Nodes()
	view.Nodes = make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		view.Nodes = append(view.Nodes, newNodeView(n))
	}
	return view
}

func newNodeView(n studio.NodeSnapshot) nodeView {
	history := make([]historyView, 0, len(n.History))
	for i, h := range n.History {
		history = append(history, historyView{
			Index:        i,
			ImageURL:     h.ImageURL,
			CustomPrompt: h.CustomPrompt,
			Timestamp:    h.Timestamp,
		})
	}

	return nodeView{
		ID:           n.ID,
		Title:        n.Title,
		Description:  n.Description,
		AspectRatio:  string(n.AspectRatio),
		Status:       string(n.Status),
		ImageURL:     n.ImageURL,
		CustomPrompt: n.CustomPrompt,
		History:      history,
	}
}
