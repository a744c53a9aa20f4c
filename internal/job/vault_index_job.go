package job

import (
	"context"
	"fmt"

	"github.com/soryel/vaultsearch/internal/service"
)

type VaultIndexJob struct {
	indexer *service.Indexer
}

func NewVaultIndexJob(indexer *service.Indexer) *VaultIndexJob {
	return &VaultIndexJob{indexer: indexer}
}

func (j *VaultIndexJob) Name() string {
	return "vault_index"
}

func (j *VaultIndexJob) Run(ctx context.Context) error {
	if j.indexer == nil {
		return nil
	}
	result, err := j.indexer.IndexVault(ctx)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("index run finished with %d file errors", len(result.Errors))
	}
	return nil
}
