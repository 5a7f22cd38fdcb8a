package cmd

import (
	"context"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/cli"
	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/storage"
	"github.com/spf13/viper"
)

// environment holds the services a command runs against
type environment struct {
	database *db.Database
	backend  storage.Backend
	resolver artifact.Resolver
}

// openDatabase opens the history database configured under history.path
func openDatabase() (*db.Database, error) {
	path := cli.GetExpandedString("history.path")
	log.Debug("Opening history database", "path", path)
	return db.New(db.Config{Path: path})
}

// openStorage creates the storage backend configured under storage.*
func openStorage() (storage.Backend, error) {
	storageType := viper.GetString("storage.type")

	// An S3 endpoint selects the S3 backend regardless of storage.type
	s3Endpoint := viper.GetString("storage.s3.endpoint")
	if s3Endpoint != "" {
		storageType = "s3"
	}

	log.Debug("Initializing storage", "type", storageType)
	backend, err := storage.New(storage.Config{
		Type: storageType,
		Local: storage.LocalConfig{
			BasePath: cli.GetExpandedString("storage.local.path"),
		},
		S3: storage.S3Config{
			Endpoint:        s3Endpoint,
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			UsePathStyle:    viper.GetBool("storage.s3.path_style"),
		},
	})
	if err != nil {
		return nil, errors.ErrStorageUnavailable.WithMessage("failed to initialize storage").WithCause(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if s3Backend, ok := backend.(*storage.S3Backend); ok {
		if err := s3Backend.EnsureBucket(ctx); err != nil {
			log.Warn("S3 bucket not accessible", "location", s3Backend.Location(), "error", err)
		}
	} else if err := backend.Ping(ctx); err != nil {
		return nil, errors.ErrStorageUnavailable.WithMessagef("storage %s not accessible", backend.Location()).WithCause(err)
	}
	return backend, nil
}

// openEnvironment prepares the resolver chain, the storage backend when
// withStorage is set or remote resolution is enabled, and the history database.
// A history database that cannot be opened only disables recording.
func openEnvironment(withStorage bool) (*environment, error) {
	env := &environment{}

	database, err := openDatabase()
	if err != nil {
		log.Warn("Build history disabled", "error", err)
	} else {
		env.database = database
	}

	local := artifact.NewLocalRepository(cli.GetExpandedString("repository.local"))
	chain := artifact.Chain{local}

	remote := viper.GetBool("repository.remote")
	if withStorage || remote {
		backend, err := openStorage()
		if err != nil {
			env.Close()
			return nil, err
		}
		env.backend = backend
	}
	if remote {
		var index *db.ArtifactCacheRepository
		if env.database != nil {
			index = db.NewArtifactCacheRepository(env.database)
		}
		chain = append(chain, artifact.NewRemoteRepository(env.backend, cli.GetExpandedString("cache.dir"), index))
	}
	env.resolver = chain
	return env, nil
}

// Close releases the environment
func (e *environment) Close() {
	if e.database != nil {
		if err := e.database.Close(); err != nil {
			log.Warn("Failed to close history database", "error", err)
		}
	}
}
