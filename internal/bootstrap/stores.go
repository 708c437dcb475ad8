package bootstrap

import (
	"github.com/eleven-am/overlord/internal/journal"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideJournalStore(db *gorm.DB) *journal.Store {
	return journal.NewStore(db)
}

// ProvideFrameStore is nil without Redis.
func ProvideFrameStore(redisClient *redis.Client, cfg *Config) *vision.Store {
	if redisClient == nil {
		return nil
	}
	return vision.NewStore(redisClient, cfg.FrameTTL)
}

func RunMigrations(journalStore *journal.Store) error {
	return journalStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideJournalStore,
		ProvideFrameStore,
	),
	fx.Invoke(RunMigrations),
)
