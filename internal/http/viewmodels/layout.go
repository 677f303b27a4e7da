// Package viewmodels holds the plain data structs handed to page rendering.
package viewmodels

// ToastViewData is a one-shot notification carried across a redirect.
type ToastViewData struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
