package api

import (
	"github.com/JaimeStill/panscan/internal/reviews"
	"github.com/JaimeStill/panscan/internal/sessions"
	"github.com/JaimeStill/panscan/internal/splits"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Reviews  reviews.System
	Splits   splits.System
	Sessions sessions.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	return &Domain{
		Reviews: reviews.New(
			runtime.Storage,
			runtime.Logger,
			runtime.Scan,
		),
		Splits: splits.New(
			runtime.Storage,
			runtime.Logger,
			runtime.Scan,
		),
		Sessions: sessions.New(
			runtime.Storage,
			runtime.Logger,
			runtime.Scan,
			runtime.Pagination,
		),
	}
}
