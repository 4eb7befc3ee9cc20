package midaserr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/midastrader/midas/midaserr"
)

func TestErrorMessageIncludesKindAndOp(t *testing.T) {
	err := midaserr.New(midaserr.ConfigError, "config.Load", fmt.Errorf("missing field"))
	assert.Equal(t, "config_error: config.Load: missing field", err.Error())
}

func TestErrorUnwrapsToCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := midaserr.New(midaserr.BrokerError, "", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorsIsMatchesSameKind(t *testing.T) {
	err := midaserr.New(midaserr.StateError, "portfolio.ApplyTrade", fmt.Errorf("negative cash"))
	target := midaserr.New(midaserr.StateError, "", nil)
	assert.True(t, errors.Is(err, target))
}

func TestErrorsIsRejectsDifferentKind(t *testing.T) {
	err := midaserr.New(midaserr.StateError, "", fmt.Errorf("x"))
	target := midaserr.New(midaserr.BrokerError, "", nil)
	assert.False(t, errors.Is(err, target))
}

func TestFatalClassifiesPropagationPolicy(t *testing.T) {
	assert.True(t, midaserr.Fatal(midaserr.DataSourceError))
	assert.True(t, midaserr.Fatal(midaserr.SchemaError))
	assert.True(t, midaserr.Fatal(midaserr.StateError))
	assert.False(t, midaserr.Fatal(midaserr.BrokerError))
	assert.False(t, midaserr.Fatal(midaserr.PluginError))
	assert.False(t, midaserr.Fatal(midaserr.ConfigError))
}
