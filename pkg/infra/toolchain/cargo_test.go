package toolchain_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
	"github.com/m-mizutani/slipway/pkg/infra/toolchain"
)

func TestCargo_Build_MissingLockfile(t *testing.T) {
	// Without a lock manifest the build is refused before cargo even runs;
	// locked dependency versions are a hard requirement
	srcDir := t.TempDir()
	tc := toolchain.New()

	targets := model.DefaultTargets("dotter")
	_, _, err := tc.Build(context.Background(), srcDir, "dotter", &targets[0])

	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagBuild))
	gt.String(t, err.Error()).Contains("lock manifest")
}
