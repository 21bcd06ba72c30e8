package documents

import "errors"

var (
	errDocumentCycle = errors.New("move would make the document its own ancestor")
	errBadParent     = errors.New("parent_id must be a folder on the same RFP")
)
