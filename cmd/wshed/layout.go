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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/export"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/measure"
	"github.com/easiwriter/WritingShedPro-sub015/internal/notes"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
	"github.com/easiwriter/WritingShedPro-sub015/internal/storage"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

func (a *app) paginateCommand() *cli.Command {
	return &cli.Command{
		Name:  "paginate",
		Usage: "Lay out a draft and print its page table",
		Flags: layoutFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			buf, setup, recs, err := a.loadLayoutInputs(ctx, cmd)
			if err != nil {
				return err
			}
			_, _, eng := newLayoutStack()
			res, err := eng.Layout(ctx, buf, setup.Page, recs, setup.Mode)
			if err != nil {
				return err
			}
			a.log.Info("layout pass",
				slog.Int("pages", len(res.Pages)),
				slog.Int("runes", res.DocLen),
				slog.Duration("took", res.Report.Duration))
			printPageTable(os.Stdout, res)
			return nil
		},
	}
}

func (a *app) exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a PDF proof of the paginated draft",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "proof file path", Required: true},
			&cli.StringFlag{Name: "title", Usage: "proof title (document title when empty)"},
			&cli.BoolFlag{Name: "endnotes", Usage: "gather all annotations after the last page"},
			&cli.BoolFlag{Name: "guides", Usage: "draw frame guides on every page"},
		}, layoutFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			buf, setup, recs, err := a.loadLayoutInputs(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("endnotes") {
				setup.Mode = paginate.Endnotes
			}
			fit, r, eng := newLayoutStack()
			res, err := eng.Layout(ctx, buf, setup.Page, recs, setup.Mode)
			if err != nil {
				return err
			}
			title := cmd.String("title")
			if title == "" {
				title = setup.Title
			}
			out := cmd.String("output")
			ex := export.NewExporter(fit, r)
			opts := export.Options{Title: title, IncludeGuides: cmd.Bool("guides")}
			if err := ex.WriteProof(out, buf, res, recs, opts); err != nil {
				return err
			}
			a.log.Info("proof written", slog.String("path", out), slog.Int("pages", len(res.Pages)))
			fmt.Println("Wrote", out)
			return nil
		},
	}
}

// layoutFlags are the inputs shared by paginate and export.
func layoutFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "draft text file", Required: true},
		&cli.StringFlag{Name: "doc", Usage: "document directory supplying page setup and annotations"},
	}, setupFlags()...)
}

// setupFlags override the page setup, whether it came from a document
// directory or from the defaults.
func setupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "paper", Usage: "paper size: letter, legal, a4 or a5"},
		&cli.StringFlag{Name: "orientation", Usage: "portrait or landscape"},
		&cli.StringFlag{Name: "margin", Usage: "margin on all four sides, e.g. 1in or 54pt"},
		&cli.StringFlag{Name: "header", Usage: "header band height, e.g. 0.5in"},
		&cli.StringFlag{Name: "footer", Usage: "footer band height, e.g. 0.5in"},
		&cli.StringFlag{Name: "mode", Usage: "annotation display: footnotes or endnotes"},
	}
}

// loadLayoutInputs reads the draft text plus whatever layout state the
// command can see: the document directory's setup and annotations when
// --doc is given, the defaults otherwise. Flags override either.
func (a *app) loadLayoutInputs(ctx context.Context, cmd *cli.Command) (*text.Buffer, storage.PageSetup, []annotation.Record, error) {
	setup := storage.DefaultPageSetup()

	raw, err := os.ReadFile(cmd.String("input"))
	if err != nil {
		return nil, setup, nil, fmt.Errorf("read input: %w", err)
	}
	buf := text.Plain(string(raw), text.Style{Size: measure.DefaultSize})

	var recs []annotation.Record
	if dir := cmd.String("doc"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, setup, nil, err
		}
		dh, err := storage.Open(abs)
		if err != nil {
			return nil, setup, nil, err
		}
		a.doc = dh
		setup = dh.Setup
		ndb, err := storage.OpenNotes(abs)
		if err != nil {
			return nil, setup, nil, err
		}
		defer ndb.Close()
		if recs, err = ndb.List(ctx); err != nil {
			return nil, setup, nil, err
		}
	}

	if err := applySetupFlags(cmd, &setup); err != nil {
		return nil, setup, nil, err
	}
	return buf, setup, recs, nil
}

// applySetupFlags folds the geometry and mode flags into setup and
// validates the result.
func applySetupFlags(cmd *cli.Command, setup *storage.PageSetup) error {
	if v := cmd.String("paper"); v != "" {
		p, err := geometry.ParsePaperSize(v)
		if err != nil {
			return err
		}
		setup.Page.Paper = p
	}
	if v := cmd.String("orientation"); v != "" {
		o, err := geometry.ParseOrientation(v)
		if err != nil {
			return err
		}
		setup.Page.Orientation = o
	}
	if v := cmd.String("margin"); v != "" {
		m, err := geometry.ParseLength(v)
		if err != nil {
			return err
		}
		setup.Page.Margins = geometry.Margins{Top: m, Bottom: m, Left: m, Right: m}
	}
	if v := cmd.String("header"); v != "" {
		h, err := geometry.ParseLength(v)
		if err != nil {
			return err
		}
		setup.Page.Header, setup.Page.HeaderHeight = h > 0, h
	}
	if v := cmd.String("footer"); v != "" {
		h, err := geometry.ParseLength(v)
		if err != nil {
			return err
		}
		setup.Page.Footer, setup.Page.FooterHeight = h > 0, h
	}
	if v := cmd.String("mode"); v != "" {
		m, err := paginate.ParseDisplayMode(v)
		if err != nil {
			return err
		}
		setup.Mode = m
	}
	return setup.Validate()
}

// newLayoutStack builds the measurement pipeline the layout commands share.
// The embedded Go fonts give real proportional metrics; the fixed-metrics
// provider stands in if they fail to parse.
func newLayoutStack() (*measure.TextFitter, *notes.Renderer, *paginate.Engine) {
	var fit *measure.TextFitter
	if p, err := measure.NewGoFontProvider(); err == nil {
		fit = measure.NewFitter(p)
	} else {
		fit = measure.NewFitter(measure.BasicProvider{})
	}
	r := notes.NewRenderer(fit, text.Style{Size: measure.DefaultSize})
	return fit, r, paginate.NewEngine(fit, r)
}

// printPageTable writes one line per page: the 1-based page number, the
// rune range, the annotation count and the body height left after the note
// block's reservation.
func printPageTable(w io.Writer, res paginate.Result) {
	fmt.Fprintf(w, "pages %d  runes %d  mode %s\n", len(res.Pages), res.DocLen, res.Mode)
	for _, pg := range res.Pages {
		flag := ""
		if pg.Overflow {
			flag = "  overflow"
		}
		fmt.Fprintf(w, "%4d  [%7d, %7d)  notes %-3d  body %6.1fpt%s\n",
			pg.Index+1, pg.Start, pg.End, len(pg.Annotations), pg.Content.H, flag)
	}
	if n := len(res.Report.Stale); n > 0 {
		fmt.Fprintf(w, "stale annotations: %d\n", n)
	}
	if len(res.Report.NonConverged) > 0 {
		fmt.Fprintf(w, "non-converged pages: %v\n", res.Report.NonConverged)
	}
}
