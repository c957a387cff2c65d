package domain

import "time"

// Perspective is one internal viewpoint on a piece of content.
type Perspective struct {
	ID         string    `json:"id"`
	Viewpoint  string    `json:"viewpoint"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"`
	Evidence   []string  `json:"evidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// PerspectiveGenerator produces one perspective from content.
type PerspectiveGenerator func(content string) Perspective
