// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"context"
	"errors"
	"testing"

	"github.com/dwarri/dhtproxy/errclass"
	"github.com/stretchr/testify/assert"
)

func TestDefaultErrClassifier(t *testing.T) {
	// DefaultErrClassifier is a no-op: it returns "" for every error.
	// [NewConfig] does not use it; it installs errclass.New instead.
	result := DefaultErrClassifier.Classify(nil)
	assert.Equal(t, "", result)

	result = DefaultErrClassifier.Classify(context.DeadlineExceeded)
	assert.Equal(t, "", result)
}

func TestErrClassifierFuncWithErrclassNew(t *testing.T) {
	classifier := ErrClassifierFunc(errclass.New)

	// Should return empty string for nil error
	result := classifier.Classify(nil)
	assert.Equal(t, "", result)

	// Should classify known errors using errclass
	result = classifier.Classify(context.DeadlineExceeded)
	assert.Equal(t, "ETIMEDOUT", result)

	// Should return EUNKNOWN for unrecognized errors
	result = classifier.Classify(errors.New("unknown error"))
	assert.Equal(t, "EUNKNOWN", result)
}
