// Package errors provides standardized error handling for kilroy-face-twitter.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// Classification lets callers make retry decisions without string matching.
// The Twitter client retries transient failures, the face surfaces invalid
// configuration to the operator verbatim, and fatal errors abort startup.
//
// # Quick Start
//
// Wrap errors with context:
//
//	if err := client.CreateTweet(ctx, draft); err != nil {
//	    return errors.WrapTransient(err, "BasicPoster", "Post", "create tweet")
//	}
//
// Check classification for retry logic:
//
//	if errors.IsTransient(err) {
//	    // retry with backoff
//	}
//
// # Error Wrapping Pattern
//
// All wrapping follows the format "component.method: action failed: %w".
// WrapTransient, WrapInvalid, and WrapFatal set the classification;
// the plain Wrap preserves whatever classification the chain already has.
//
// # Integration with errors.Is/As
//
// ClassifiedError supports Unwrap, so errors.Is and errors.As see through
// the wrapping. Classification is preserved across wrap chains.
//
// Domain errors that carry data live with their producers:
// component.UnknownCategoryError, param.GetError, param.SetError,
// face.InvalidConfigError, and the state.ErrNotReady sentinel.
package errors
