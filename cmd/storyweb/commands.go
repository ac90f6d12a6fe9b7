package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/OFFIS-RIT/storyweb/internal/db"
	"github.com/OFFIS-RIT/storyweb/internal/storage"
	"github.com/OFFIS-RIT/storyweb/pkg/cluster"
	"github.com/OFFIS-RIT/storyweb/pkg/extract"
	"github.com/OFFIS-RIT/storyweb/pkg/graph"
	"github.com/OFFIS-RIT/storyweb/pkg/leaselock"
	"github.com/OFFIS-RIT/storyweb/pkg/loader"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	"github.com/OFFIS-RIT/storyweb/pkg/store"
	storepgx "github.com/OFFIS-RIT/storyweb/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type env struct {
	pool   *pgxpool.Pool
	engine *cluster.Engine
}

func (e *env) Close() {
	e.pool.Close()
}

func openEnv(ctx context.Context, opts ...cluster.EngineOption) (*env, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	onto, err := ontology.Default()
	if ontologyPath != "" {
		onto, err = ontology.Load(ontologyPath)
	}
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &env{pool: pool, engine: cluster.NewEngine(storepgx.NewStorage(pool), onto, opts...)}, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return db.Migrate(databaseURL)
		},
	}
}

// sourceFor picks the S3 client for s3:// URIs and the local filesystem
// otherwise.
func sourceFor(ctx context.Context, path string) (loader.Source, string, error) {
	bucket, key, ok := storage.SplitURI(path)
	if !ok {
		return loader.FileSource{}, path, nil
	}
	cfg := storage.ConfigFromEnv()
	cfg.Bucket = bucket
	client, err := storage.NewClient(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return client, key, nil
}

func importCmd() *cobra.Command {
	var (
		languages []string
		merge     bool
	)

	cmd := &cobra.Command{
		Use:   "import [file.jsonl|s3://bucket/key]...",
		Short: "Load extracted articles from JSON lines files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, path := range args {
				src, key, err := sourceFor(ctx, path)
				if err != nil {
					return err
				}
				file := loader.ArticleFile{Path: key, Source: src, Languages: languages}
				stats, err := file.Each(ctx, func(raw extract.RawArticle) error {
					return e.engine.SaveExtracted(ctx, extract.Build(raw))
				})
				if err != nil {
					return err
				}
				logger.Info(
					"[Extract] Imported file",
					"path", path,
					"articles", stats.Articles,
					"skipped", stats.Skipped,
					"invalid", stats.Invalid,
				)
			}

			if merge {
				return runAutoMerge(ctx, e, true)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&languages, "language", nil, "only import articles in these languages")
	cmd.Flags().BoolVar(&merge, "auto-merge", false, "run auto-merge after importing")
	return cmd
}

func runAutoMerge(ctx context.Context, e *env, checkLinks bool) error {
	locks := leaselock.New(e.pool)
	return locks.WithLease(ctx, leaselock.AutoMergeKey, leaselock.Options{Owner: "cli-", Wait: true}, func(ctx context.Context) error {
		res, err := e.engine.AutoMerge(ctx, checkLinks)
		if err != nil {
			return err
		}
		fmt.Printf("groups=%d merged=%d links=%d failed=%d\n", res.Groups, res.Merged, res.Links, res.Failed)
		return nil
	})
}

func autoMergeCmd() *cobra.Command {
	var (
		force     bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "auto-merge",
		Short: "Link clusters that share a fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cluster.WithBatchSize(batchSize))
			if err != nil {
				return err
			}
			defer e.Close()
			return runAutoMerge(cmd.Context(), e, !force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "also merge pairs that already have a link")
	cmd.Flags().IntVar(&batchSize, "batch-size", 10000, "fingerprints per page")
	return cmd
}

func updateClusterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-cluster [id]...",
		Short: "Recompute the clusters of the given tag ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			for _, id := range args {
				c, err := e.engine.UpdateCluster(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("update %s: %w", id, err)
				}
				fmt.Printf("%s -> %s\n", id, c)
			}
			return nil
		},
	}
}

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict [anchor] [other]",
		Short: "Suggest a link type between two clusters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			prediction, err := e.engine.PredictLink(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(prediction)
		},
	}
}

func exportGraphCmd() *cobra.Command {
	var (
		out   string
		types []string
	)

	cmd := &cobra.Command{
		Use:   "export-graph",
		Short: "Write the cluster link graph as GEXF",
		Long:  "Write the cluster link graph as GEXF to stdout, a file, or s3://bucket/key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			clusters, links, err := e.engine.ClusterGraph(ctx, store.GraphFilter{Types: types})
			if err != nil {
				return err
			}
			g := graph.New(clusters, links)
			logger.Info("Built graph", "nodes", len(g.Nodes), "edges", len(g.Edges))

			return writeGraph(ctx, g, out, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, s3://bucket/key or - for stdout")
	cmd.Flags().StringSliceVar(&types, "types", nil, "only include these link types")
	return cmd
}

func writeGraph(ctx context.Context, g *graph.Graph, out string, stdout io.Writer) error {
	if out == "-" || out == "" {
		return g.WriteGEXF(stdout)
	}

	if bucket, key, ok := storage.SplitURI(out); ok {
		var buf bytes.Buffer
		if err := g.WriteGEXF(&buf); err != nil {
			return err
		}
		cfg := storage.ConfigFromEnv()
		cfg.Bucket = bucket
		client, err := storage.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		if err := client.Put(ctx, key, &buf); err != nil {
			return err
		}
		link, err := client.PresignGet(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, link)
		return nil
	}

	if !strings.HasSuffix(out, ".gexf") {
		logger.Warn("Output file does not end in .gexf", "path", out)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := g.WriteGEXF(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("Wrote graph", "path", out, "at", time.Now().Format(time.RFC3339))
	return nil
}
