package platform

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-publisher/internal/retry"
)

var (
	DefaultTransientCodes = []int{-1, 45009, 45011, 40001, 42001, 40014}
	DefaultStaleCodes     = []int{40007}
	DefaultTokenCodes     = []int{40001, 42001, 40014}
)

// Classifier sorts platform failures into retry classes using configurable
// errcode lists.
type Classifier struct {
	transient map[int]struct{}
	stale     map[int]struct{}
	token     map[int]struct{}
}

// NewClassifier builds a classifier. Nil lists fall back to the defaults;
// token codes are always retried.
func NewClassifier(transient, stale, token []int) *Classifier {
	if transient == nil {
		transient = DefaultTransientCodes
	}
	if stale == nil {
		stale = DefaultStaleCodes
	}
	if token == nil {
		token = DefaultTokenCodes
	}
	c := &Classifier{
		transient: codeSet(transient),
		stale:     codeSet(stale),
		token:     codeSet(token),
	}
	for code := range c.token {
		c.transient[code] = struct{}{}
	}
	return c
}

func DefaultClassifier() *Classifier {
	return NewClassifier(nil, nil, nil)
}

func codeSet(codes []int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

func (c *Classifier) Classify(err error) retry.Class {
	if err == nil {
		return retry.ClassPermanent
	}

	var platformErr *Error
	if errors.As(err, &platformErr) {
		if _, ok := c.stale[platformErr.Code]; ok {
			return retry.ClassStale
		}
		if _, ok := c.transient[platformErr.Code]; ok {
			return retry.ClassTransient
		}
		return retry.ClassPermanent
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= http.StatusInternalServerError || httpErr.Status == http.StatusTooManyRequests {
			return retry.ClassTransient
		}
		return retry.ClassPermanent
	}

	return retry.NetworkClassifier.Classify(err)
}

// IsTokenError reports whether err means the access token must be refetched.
func (c *Classifier) IsTokenError(err error) bool {
	var platformErr *Error
	if !errors.As(err, &platformErr) {
		return false
	}
	_, ok := c.token[platformErr.Code]
	return ok
}

// IsStale reports whether err names a media reference the platform no
// longer recognizes.
func (c *Classifier) IsStale(err error) bool {
	return c.Classify(err) == retry.ClassStale
}
