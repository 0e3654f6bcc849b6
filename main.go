package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-yaml/yaml"
	"github.com/gobuffalo/envy"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/Open-CMSIS-Pack/vsce-helper/downloader"
	"github.com/Open-CMSIS-Pack/vsce-helper/githubasset"
	"github.com/Open-CMSIS-Pack/vsce-helper/log"
	"github.com/Open-CMSIS-Pack/vsce-helper/models"
	"github.com/Open-CMSIS-Pack/vsce-helper/printer"
)

func main() {

	var target string
	var dest string
	var cache string
	var configPath string
	var tools string
	var force bool
	var verbose bool

	app := cli.NewApp()
	app.Name = "vsce-helper"
	app.Usage = "Download the build tools of the packaging pipeline"
	app.Version = "0.9.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "target, t",
			Usage:       "Target platform ({os}-{arch}), defaults to the running system",
			Destination: &target,
		}, cli.StringFlag{
			Name:        "dest, d",
			Usage:       "Destination directory, one subdirectory per tool",
			Value:       "./tools",
			Destination: &dest,
		}, cli.StringFlag{
			Name:        "cache",
			Usage:       "Cache directory",
			Destination: &cache,
		}, cli.StringFlag{
			Name:        "config",
			Usage:       "YAML file declaring extra web-served tools",
			Destination: &configPath,
		}, cli.StringFlag{
			Name:        "tools",
			Usage:       "Comma-separated tool keys, defaults to all",
			Destination: &tools,
		}, cli.BoolFlag{
			Name:        "force, f",
			Usage:       "Download regardless of the cache state",
			Destination: &force,
		}, cli.BoolFlag{
			Name:        "verbose",
			Usage:       "Full debug log",
			Destination: &verbose,
		},
	}

	app.Action = func(c *cli.Context) error {
		if verbose {
			log.L.Logger.SetLevel(logrus.DebugLevel)
		}

		ctx := context.Background()

		platform, err := resolvePlatform(target)
		if err != nil {
			return err
		}

		token := envy.Get("GITHUB_TOKEN", "")
		pool := githubasset.NewClientPool()

		registry := downloader.Tools(pool, token)
		registry = append(registry, downloader.FromConfig(getTools(configPath))...)

		if cache == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cache = downloader.DefaultCacheDir(cwd)
		}

		d, err := downloader.New(dest, cache, registry)
		if err != nil {
			return err
		}

		keys := d.Keys()
		if tools != "" {
			keys = strings.Split(tools, ",")
		}

		results, err := d.Run(ctx, keys, platform, downloader.Options{Force: force})
		printer.Table(results)
		return err
	}

	if err := app.Run(os.Args); err != nil {
		log.L.Fatal(err)
	}
}

func resolvePlatform(target string) (models.TargetPlatform, error) {
	if target == "" {
		return models.HostPlatform()
	}
	return models.ParseTargetPlatform(target)
}

func getTools(path string) []models.ToolConfig {
	if path == "" {
		return nil
	}

	configs := []models.ToolConfig{}

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		log.L.Warnf("could not read tool config %s: %v", path, err)
		return nil
	}
	if err := yaml.Unmarshal(yamlFile, &configs); err != nil {
		log.L.Fatalf("Unmarshal: %v", err)
	}

	for i, cfg := range configs {
		if cfg.Name == "" {
			cfg.Name = cfg.Key
			configs[i] = cfg
		}
	}
	return configs
}
