package embedding

import "faqbot/internal/domain"

// Embedder converts free text into a sparse vector. Implementations must be
// fitted on a corpus before Transform is called.
type Embedder interface {
	Name() string
	Fit(corpus []string)
	Fitted() bool
	Dimension() int
	Transform(text string) (Vector, error)
	State() (domain.VectorizerState, error)
	Restore(state domain.VectorizerState) error
}
