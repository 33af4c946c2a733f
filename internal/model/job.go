package model

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// jobNamespace scopes the name-based UUIDs used as job identities
var jobNamespace = uuid.MustParse("6f1b8d0e-3c0a-5d4e-9a55-7e2f4c1b9d20")

// JobDescriptor is one requested acquisition. It is immutable; the zero value
// is not usable.
type JobDescriptor struct {
	id    uuid.UUID
	url   string
	index int
	opts  Options
}

// NewJobDescriptor normalizes the URL, validates options and derives a
// deterministic identity from both.
func NewJobDescriptor(rawURL string, opts Options) (JobDescriptor, error) {
	return newDescriptor(rawURL, 0, opts)
}

func newDescriptor(rawURL string, index int, opts Options) (JobDescriptor, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return JobDescriptor{}, err
	}
	if err := opts.Validate(); err != nil {
		return JobDescriptor{}, fmt.Errorf("invalid options: %w", err)
	}
	name := u + "|" + opts.fingerprint()
	if index > 0 {
		name += "|" + strconv.Itoa(index)
	}
	return JobDescriptor{
		id:    uuid.NewSHA1(jobNamespace, []byte(name)),
		url:   u,
		index: index,
		opts:  opts,
	}, nil
}

// ForItem derives the descriptor of playlist item index (1-based) with the
// same options.
func (d JobDescriptor) ForItem(itemURL string, index int) (JobDescriptor, error) {
	if index < 1 {
		return JobDescriptor{}, fmt.Errorf("invalid playlist index %d", index)
	}
	return newDescriptor(itemURL, index, d.opts)
}

func (d JobDescriptor) ID() string           { return d.id.String() }
func (d JobDescriptor) URL() string          { return d.url }
func (d JobDescriptor) Index() int           { return d.index }
func (d JobDescriptor) Kind() Kind           { return d.opts.Kind }
func (d JobDescriptor) Quality() QualitySpec { return d.opts.Quality }
func (d JobDescriptor) IncludeAudio() bool   { return d.opts.IncludeAudio }
func (d JobDescriptor) OutputDir() string    { return d.opts.OutputDir }
func (d JobDescriptor) Post() PostProcess    { return d.opts.Post }
func (d JobDescriptor) Options() Options     { return d.opts }
func (d JobDescriptor) IsZero() bool         { return d.id == uuid.Nil }

// ShortID returns the first 8 hex digits of the identity
func (d JobDescriptor) ShortID() string {
	return d.ID()[:8]
}

// Stem returns the deterministic output file stem for this job:
// the sanitized title followed by the short identity.
func (d JobDescriptor) Stem(title string) string {
	return SanitizeFileName(title) + "-" + d.ShortID()
}
