package pagegen

import "errors"

var (
	// ErrTemplateSyntax marks malformed placeholder markup.
	ErrTemplateSyntax = errors.New("template syntax error")
	// ErrMissingVariables marks required variables absent from the input.
	ErrMissingVariables = errors.New("missing variables")
	// ErrStorageUnavailable is returned when no object storage is configured.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageUploadFailed wraps a rejected upload.
	ErrStorageUploadFailed = errors.New("storage upload failed")
	// ErrPersistenceExhausted is returned when every slug attempt collided.
	ErrPersistenceExhausted = errors.New("failed to persist page due to slug collisions")
	// ErrSlugConflict is returned by PageStore.CreatePage on a duplicate (owner, slug).
	ErrSlugConflict = errors.New("slug already exists")
	// ErrTemplateNotFound is returned when a template lookup misses.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrJobNotFound is returned when a job lookup misses.
	ErrJobNotFound = errors.New("job not found")
	// ErrPageNotFound is returned when a page lookup misses.
	ErrPageNotFound = errors.New("page not found")
	// ErrJobFailed is returned once a job has been marked failed.
	ErrJobFailed = errors.New("bulk job failed")
	// ErrQueueClosed is returned by Queue.Dequeue after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)

// IsPermanent reports whether redelivering a job that returned err cannot
// change the outcome.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrJobFailed)
}
