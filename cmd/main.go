package main

import (
	"log"

	"github.com/codetrail/learngate/internal/catalog"
	infra "github.com/codetrail/learngate/internal/infrastructure"
	"github.com/codetrail/learngate/internal/infrastructure/driver"
	"github.com/codetrail/learngate/internal/infrastructure/logging"
	"github.com/codetrail/learngate/internal/infrastructure/uuid"
	"github.com/codetrail/learngate/internal/interfaces/http"
	"github.com/codetrail/learngate/internal/profile"
	"github.com/codetrail/learngate/internal/progress"
	"github.com/codetrail/learngate/internal/session"
	"github.com/codetrail/learngate/internal/upstream"
)

func main() {
	config, err := infra.InitConfig()
	if err != nil {
		log.Fatalf("Failed to init config: %s", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: config.Logging.FilePath,
		Level:    config.Logging.Level,
		Env:      config.Env,
		AppID:    config.AppID,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s", err)
	}
	defer logger.Sync()

	kv := driver.NewRedisClient(config.KVStore.Host, config.KVStore.Port, config.KVStore.Password)
	if err := kv.Ping(); err != nil {
		log.Fatalf("Failed to connect kv store: %s", err)
	}

	api := upstream.NewClient(config.Upstream.BaseURL, config.Upstream.Timeout, logger)
	sessions := session.NewManager(kv, uuid.NewNanoIDGenerator(config.Security.SIDLength), config.SessionTimeout, logger)
	tracker := progress.NewTracker(api, sessions, config.SessionTimeout, logger)
	catalogService := catalog.NewService(api)
	profileService := profile.NewService(api, tracker, catalogService, logger)

	http.Serve(kv, api, config, sessions, catalogService, tracker, profileService, logger)
}
