package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catintel/catintel/internal/app"
	cattest "github.com/catintel/catintel/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	cattest.EnableTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
