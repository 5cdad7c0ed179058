package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"modelforge/src/directors"
	"modelforge/src/engine"
	"modelforge/src/realtime"
	"modelforge/src/settings"
)

// printUsage prints helpful usage information
func printUsage() {
	log.Println("ModelForge - logical data model designer and type projector")
	log.Println("\nUsage:")
	log.Println("  modelforge [options]")
	log.Println("\nOptions:")
	flag.PrintDefaults()

	log.Println("\nExamples:")
	log.Println("  modelforge --versionid=ver-1a2b3c4d5e6f --outdir=./typings")
	log.Println("  modelforge --mongouri=mongodb://localhost:27017 --versionid=ver-1a2b3c4d5e6f")
}

func main() {
	// Get the global settings instance; env and .env defaults are already
	// applied, flags overwrite them.
	args := settings.GetSettings()

	flag.StringVar(&args.MongoURI, "mongouri", args.MongoURI, "MongoDB connection string of the design store")
	flag.StringVar(&args.Database, "dbname", args.Database, "Name of the design store database")
	flag.StringVar(&args.VersionID, "versionid", args.VersionID, "Application version to generate typings for")
	flag.StringVar(&args.OutDir, "outdir", "", "Directory to write generated typings to (default: stdout)")
	flag.BoolVar(&args.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&args.Debug, "debug", false, "Enable debug mode")

	flag.Parse()

	if err := validateArguments(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		printUsage()
		os.Exit(1)
	}

	logger, err := initLogger(args)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if args.Verbose {
		sugar.Infow("starting with options",
			"dbname", args.Database,
			"versionId", args.VersionID,
			"outdir", args.OutDir,
			"debug", args.Debug,
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(args.MongoURI))
	if err != nil {
		sugar.Fatalf("Failed to connect to the design store: %v", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		sugar.Fatalf("Failed to reach the design store: %v", err)
	}

	modelStore := engine.NewModelStore(client, args.Database, sugar)
	dbStore := engine.NewDatabaseStore(client, args.Database, sugar)
	resolver := engine.NewResolver(modelStore, sugar)
	planner := engine.NewCascadePlanner(modelStore, resolver, sugar)
	dispatcher := realtime.NewChannelDispatcher()

	typingsSvc := directors.NewTypingsService(dbStore, modelStore, dispatcher, sugar)

	// The mutation services are not exercised by the generator run but are
	// wired here so a failure in their construction surfaces at startup.
	_ = directors.NewDatabaseService(dbStore, modelStore, planner, typingsSvc, args, sugar)
	_ = directors.NewModelService(modelStore, dbStore, resolver, planner, typingsSvc, args, sugar)
	_ = directors.NewFieldService(modelStore, dbStore, planner, typingsSvc, args, sugar)

	artifacts, err := typingsSvc.VersionTypings(ctx, args.VersionID)
	if err != nil {
		sugar.Fatalf("Failed to generate typings: %v", err)
	}

	if err := writeArtifacts(args.OutDir, artifacts); err != nil {
		sugar.Fatalf("Failed to write typings: %v", err)
	}
	sugar.Infow("typings generated", "versionId", args.VersionID, "artifacts", len(artifacts))
}

func initLogger(args *settings.Arguments) (*zap.Logger, error) {
	if args.Debug {
		cfg := zap.NewDevelopmentConfig()
		logger, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		zap.ReplaceGlobals(logger)
		return logger, nil
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func writeArtifacts(outDir string, artifacts map[string]string) error {
	if outDir == "" {
		for path, src := range artifacts {
			fmt.Printf("// %s\n%s\n", path, src)
		}
		return nil
	}
	var errs error
	for path, src := range artifacts {
		target := filepath.Join(outDir, path)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("could not create output directory: %w", err))
			continue
		}
		if err := os.WriteFile(target, []byte(src), 0644); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("could not write %s: %w", target, err))
		}
	}
	return errs
}

// validateArguments validates the arguments and returns an error if invalid
func validateArguments(args *settings.Arguments) error {
	if args.MongoURI == "" {
		return fmt.Errorf("no MongoDB connection string given (set MONGODB_URI or --mongouri)")
	}
	if args.Database == "" {
		return fmt.Errorf("no design store database name given")
	}
	if args.VersionID == "" {
		return fmt.Errorf("no version given (use --versionid)")
	}

	if args.OutDir != "" {
		dirInfo, err := os.Stat(args.OutDir)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(args.OutDir, 0755); err != nil {
					return fmt.Errorf("could not create output directory: %w", err)
				}
			} else {
				return fmt.Errorf("error accessing output directory: %w", err)
			}
		} else if !dirInfo.IsDir() {
			return fmt.Errorf("output path exists but is not a directory: %s", args.OutDir)
		}
	}
	return nil
}
