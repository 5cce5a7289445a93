/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/easiwriter/WritingShedPro-sub015/internal/backend"
	"github.com/easiwriter/WritingShedPro-sub015/internal/config"
	"github.com/easiwriter/WritingShedPro-sub015/internal/storage"
)

func (a *app) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Obtain a sync token and store it in the OS keychain",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Usage: "token subject", Value: "writer"},
			&cli.StringFlag{Name: "ttl", Usage: "token lifetime, e.g. 1h", Value: "1h"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, path, err := config.Load()
			if err != nil {
				return err
			}
			ttl, err := time.ParseDuration(cmd.String("ttl"))
			if err != nil {
				return fmt.Errorf("bad ttl: %w", err)
			}
			cl := backend.NewClientFromConfig(cfg.Backend, "")
			tok, err := cl.RequestToken(ctx, cmd.String("subject"), ttl)
			if err != nil {
				return err
			}
			if err := config.SetToken(tok); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			a.log.Info("token stored",
				slog.String("backend", cfg.Backend.BaseURL),
				slog.String("config", path))
			fmt.Println("Token stored in the OS keychain.")
			return nil
		},
	}
}

func (a *app) syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Exchange annotations with the sync backend",
		Commands: []*cli.Command{
			{
				Name:   "push",
				Usage:  "Upload the document's annotations, tombstones included",
				Flags:  docFlags(),
				Action: a.runPush,
			},
			{
				Name:   "pull",
				Usage:  "Download the backend's annotation set into the document",
				Flags:  docFlags(),
				Action: a.runPull,
			},
		},
	}
}

// docFlags returns fresh flag instances per command; urfave flags hold
// parse state.
func docFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "doc", Usage: "document directory", Required: true},
		&cli.StringFlag{Name: "id", Usage: "backend document id (directory name when empty)"},
	}
}

func (a *app) runPush(ctx context.Context, cmd *cli.Command) error {
	dh, ndb, err := a.openDocument(cmd.String("doc"))
	if err != nil {
		return err
	}
	defer ndb.Close()
	recs, err := ndb.List(ctx)
	if err != nil {
		return err
	}
	cl, err := a.syncClient()
	if err != nil {
		return err
	}
	id := backendDocID(cmd, dh)
	n, err := cl.PushAnnotations(ctx, id, dh.Setup.Title, recs)
	if err != nil {
		return err
	}
	a.log.Info("annotations pushed", slog.String("doc", id), slog.Int("upserted", n))
	fmt.Printf("Pushed %d annotations for %s\n", n, id)
	return nil
}

func (a *app) runPull(ctx context.Context, cmd *cli.Command) error {
	dh, ndb, err := a.openDocument(cmd.String("doc"))
	if err != nil {
		return err
	}
	defer ndb.Close()
	cl, err := a.syncClient()
	if err != nil {
		return err
	}
	id := backendDocID(cmd, dh)
	recs, err := cl.PullAnnotations(ctx, id)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := ndb.Seed(ctx, rec); err != nil {
			return fmt.Errorf("seed %s: %w", rec.ID, err)
		}
	}
	a.log.Info("annotations pulled", slog.String("doc", id), slog.Int("records", len(recs)))
	fmt.Printf("Pulled %d annotations into %s\n", len(recs), dh.Root)
	return nil
}

// openDocument opens the document directory and its annotation store, and
// points the crash handler at the handle.
func (a *app) openDocument(dir string) (*storage.DocumentHandle, *storage.NotesDB, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, err
	}
	dh, err := storage.Open(abs)
	if err != nil {
		return nil, nil, err
	}
	a.doc = dh
	ndb, err := storage.OpenNotes(abs)
	if err != nil {
		return nil, nil, err
	}
	return dh, ndb, nil
}

// syncClient builds a backend client from the stored configuration and the
// keychain token.
func (a *app) syncClient() (*backend.Client, error) {
	cfg, _, err := config.Load()
	if err != nil {
		return nil, err
	}
	tok := config.Token()
	if tok == "" {
		return nil, errors.New("no sync token stored; run wshed login first")
	}
	return backend.NewClientFromConfig(cfg.Backend, tok), nil
}

func backendDocID(cmd *cli.Command, dh *storage.DocumentHandle) string {
	if id := cmd.String("id"); id != "" {
		return id
	}
	return filepath.Base(dh.Root)
}
