// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/luxfi/msgrpc/errdefs"
)

// wireError is the body of a ZAP error frame: [code, message].
type wireError struct {
	_msgpack struct{} `msgpack:",as_array"`

	Code    string
	Message string
}

func encodeError(err error) []byte {
	b, merr := msgpack.Marshal(&wireError{Code: string(errdefs.CodeOf(err)), Message: err.Error()})
	if merr != nil {
		return []byte(err.Error())
	}
	return b
}

// decodeError rebuilds a peer failure. Bodies that are not coded are
// reported as plain remote errors.
func decodeError(body []byte) error {
	var we wireError
	if err := msgpack.Unmarshal(body, &we); err != nil || we.Code == "" {
		return errdefs.NewRemote(errdefs.CodeRemote, string(body))
	}
	return errdefs.NewRemote(errdefs.Code(we.Code), we.Message)
}
