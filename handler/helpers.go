package handler

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

const MsgInternalServerError = "Internal server error"

type APISuccessResponse struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

type APIErrorResponse struct {
	Error string `json:"error"`
}

// JSONSerializer encodes responses with sonic. Request bodies use echo's default decoder.
type JSONSerializer struct {
	echo.DefaultJSONSerializer
}

func (s JSONSerializer) Serialize(c echo.Context, data any, indent string) error {
	var (
		buf []byte
		err error
	)

	if indent != "" {
		buf, err = sonic.ConfigFastest.MarshalIndent(data, "", indent)
	} else {
		buf, err = sonic.ConfigFastest.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to serialize JSON object: %w", err)
	}

	_, err = c.Response().Write(buf)
	return err
}
