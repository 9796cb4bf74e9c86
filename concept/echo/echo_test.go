package echo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

func TestHandlerEchoesText(t *testing.T) {
	c := Handler(context.Background(), nil, model.ActionInvocation{
		Action: "send", Input: model.Fields{"text": "hi"},
	})
	require.Equal(t, model.VariantOK, c.Variant)
	require.Equal(t, "hi", c.Output["echo"])
}

func TestHandlerUnknownAction(t *testing.T) {
	c := Handler(context.Background(), nil, model.ActionInvocation{Action: "bogus"})
	require.Equal(t, model.VariantError, c.Variant)
}
