package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/pmkol/gqlx/coremain"
	"github.com/pmkol/gqlx/mlog"
)

func main() {
	if err := coremain.Run(); err != nil {
		mlog.L().Error("gqlx exited", zap.Error(err))
		os.Exit(1)
	}
}
