// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package dbconn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kapitor/custody/configuration"
)

func TestConnect(t *testing.T) {
	cfg := configuration.Default()
	db, err := Connect(cfg.DB)
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestConnect_badURL(t *testing.T) {
	cfg := configuration.Default()
	cfg.DB.URL = "not-a-url"
	_, err := Connect(cfg.DB)
	require.Error(t, err)
}
