package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCmd(t *testing.T) {
	t.Run("--version prints version", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--version"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out.String(), "presence-dash ") {
			t.Errorf("version output = %q", out.String())
		}
	})

	t.Run("accepts the flags presence passes through", func(t *testing.T) {
		cmd := newRootCmd()
		for _, name := range []string{"config", "base-url", "transport", "log-level"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("missing --%s", name)
			}
		}
	})
}
