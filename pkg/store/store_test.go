package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointIDIsStableAndUnique(t *testing.T) {
	a := endpointID("doc-1", "GET", "/users")
	b := endpointID("doc-1", "POST", "/users")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "doc-1:GET:/users", a)
}

func TestInterfaceIDFromTestCaseStripsCategorySuffix(t *testing.T) {
	assert.Equal(t, "GET /users", interfaceIDFromTestCase("GET /users#positive"))
}

func TestInterfaceIDFromTestCaseWithoutSeparatorReturnsInput(t *testing.T) {
	assert.Equal(t, "malformed", interfaceIDFromTestCase("malformed"))
}
