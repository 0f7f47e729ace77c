package db

import (
	"context"
	"fmt"

	"github.com/yeisme/vistoria/pkg/internal/model"
	nlog "github.com/yeisme/vistoria/pkg/log"
)

// Migrate 执行 AutoMigrate，仅在启动或 `vistoria db migrate` 中调用.
func (c *Client) Migrate(ctx context.Context) error {
	models := model.All()
	if err := c.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	nlog.Logger().Info().Int("tables", len(models)).Msg("database migrated")

	return nil
}
