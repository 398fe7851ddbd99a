package extract

import (
	perr "github.com/ppiankov/wikiedits/internal/errors"
)

// Reasons a diff file yields no record. Each one skips the file, never the batch.
var (
	ErrNoAbstract       = perr.New(perr.ErrorCodeNotFound, "no abstract section")
	ErrMalformedMarkup  = perr.New(perr.ErrorCodeMalformed, "malformed diff markup")
	ErrNoDiffSentence   = perr.New(perr.ErrorCodeNotFound, "no sentence with a diff marker")
	ErrFilteredSentence = perr.New(perr.ErrorCodeValidation, "diff sentence belongs to a category or list page")
	ErrMultiEdit        = perr.New(perr.ErrorCodeValidation, "more than one edit in sentence")
	ErrDegenerate       = perr.New(perr.ErrorCodeValidation, "edit has no content")
	ErrBadFileName      = perr.New(perr.ErrorCodeInvalidArgument, "diff file name does not match {doc}_diff_v{n}v{n+1}.tex")
)
