package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fwojciec/sitemapgen"
	"github.com/fwojciec/sitemapgen/crawl"
	"github.com/fwojciec/sitemapgen/fs"
)

// urlWidth is the widest URL printed in progress lines.
const urlWidth = 100

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	opts := c.Options()
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", sitemapgen.ErrorMessage(err))
		return err
	}

	progress := func(event sitemapgen.ProgressEvent) {
		switch event.Type {
		case sitemapgen.ProgressError:
			fmt.Fprintf(deps.Stderr, "  %s\n", crawl.FormatEvent(event, urlWidth))
		default:
			if !c.Quiet {
				fmt.Fprintf(deps.Stdout, "  %s\n", crawl.FormatEvent(event, urlWidth))
			}
		}
	}

	ctx := deps.Ctx
	records, err := c.Engine(deps.Logger).Crawl(ctx, c.URL, opts, progress)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(deps.Stderr, "interrupted, writing %d URLs found so far\n", len(records))
		ctx = context.WithoutCancel(ctx)
	case err != nil:
		fmt.Fprintf(deps.Stderr, "error: %s\n", sitemapgen.ErrorMessage(err))
		return err
	}

	set, err := c.Builder(deps.Logger).Build(records)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error building sitemaps: %v\n", err)
		return err
	}

	out := filepath.Clean(c.Output)
	writer := fs.NewSitemapWriter(filepath.Dir(out), filepath.Base(out))
	if err := writer.WriteSitemaps(ctx, set); err != nil {
		fmt.Fprintf(deps.Stderr, "error writing sitemaps: %v\n", err)
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(deps.Stdout, "No pages found.")
		return nil
	}
	fmt.Fprintf(deps.Stdout, "Wrote %d URLs in %d sitemap(s) (%s) to %s\n",
		len(records), set.Len(), crawl.FormatBytes(crawl.SitemapSize(set)), writer.Dir())
	if set.HasIndex() {
		fmt.Fprintf(deps.Stdout, "  index: %s\n", filepath.Join(writer.Dir(), set.Index.Name))
	}
	return nil
}
