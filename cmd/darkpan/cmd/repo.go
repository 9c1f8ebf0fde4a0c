// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/repository"
	"gopkg.in/yaml.v2"
)

// openRepository opens the repository designated by the root flag
func openRepository() (*repository.Repository, error) {
	return repository.Open(darkpanFlags.root.dir, repositoryOptions()...)
}

func repositoryOptions() []repository.Option {
	opts := []repository.Option{repository.WithLogger(logger)}
	if darkpanFlags.root.user != "" {
		opts = append(opts, repository.WithUsername(darkpanFlags.root.user))
	}
	return opts
}

// withRepository runs some action against the repository, then closes it
func withRepository(msg string, action func(context.Context, *repository.Repository) error) {
	repo, err := openRepository()
	if err != nil {
		fatalOnRepoError("opening repository", err)
		return
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Sugar().Warnf("closing repository: %v", err)
		}
	}()

	if err = action(context.Background(), repo); err != nil {
		fatalOnRepoError(msg, err)
	}
}

// stackRef designates the stack given by the stack flag, or the default stack
func stackRef() repository.StackRef {
	if darkpanFlags.stack.name == "" {
		return repository.DefaultStack()
	}
	return repository.ByName(darkpanFlags.stack.name)
}

func printYAML(v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	infoLogger.Print(string(b))
	return nil
}
