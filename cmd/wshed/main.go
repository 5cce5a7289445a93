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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/easiwriter/WritingShedPro-sub015/internal/backend"
	"github.com/easiwriter/WritingShedPro-sub015/internal/crash"
	applog "github.com/easiwriter/WritingShedPro-sub015/internal/log"
	"github.com/easiwriter/WritingShedPro-sub015/internal/storage"
	"github.com/easiwriter/WritingShedPro-sub015/internal/version"
)

// app carries the state shared by the subcommands. doc is whatever document
// the running command has open; the crash handler snapshots it.
type app struct {
	log *slog.Logger
	doc *storage.DocumentHandle
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	a := &app{log: applog.WithComponent("cli")}
	defer func() {
		if r := recover(); r != nil {
			crash.Handle(r, a.doc)
		}
	}()

	root := &cli.Command{
		Name:  "wshed",
		Usage: "Writing Shed Pro page layout, proofs and annotation sync",
		Commands: []*cli.Command{
			a.paginateCommand(),
			a.exportCommand(),
			a.initCommand(),
			a.loginCommand(),
			a.syncCommand(),
			a.serveCommand(),
			versionCommand(),
		},
	}
	if err := root.Run(context.Background(), os.Args); err != nil {
		a.log.Error("command failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create a document directory with its page setup",
		ArgsUsage: "<dir>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "document title shown in listings"},
		}, setupFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				return errors.New("init requires a document directory")
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			setup := storage.DefaultPageSetup()
			setup.Title = cmd.String("title")
			if err := applySetupFlags(cmd, &setup); err != nil {
				return err
			}
			dh, err := storage.InitDocument(abs, setup)
			if err != nil {
				return err
			}
			a.doc = dh
			a.log.Info("document created", slog.String("root", abs), slog.String("title", setup.Title))
			fmt.Println("Created document at", abs)
			return nil
		},
	}
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the annotation sync backend",
		Action: func(ctx context.Context, _ *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.log.Info("starting sync backend")
			return backend.Serve(ctx)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the application version",
		Action: func(context.Context, *cli.Command) error {
			fmt.Println("Writing Shed Pro", version.String())
			return nil
		},
	}
}
