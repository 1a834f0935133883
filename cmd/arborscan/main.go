// Command arborscan runs ad-hoc searches against a mapped DynamoDB table.
//
// The table is described by a YAML config file (see mapper.LoadConfig).
// Credentials come from the environment or a .env file in the working
// directory, with AWS_ACCESS_KEY/AWS_SECRET_KEY taking precedence over the
// default provider chain.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/jacentio/arbor/mapper"
)

// valueFlags collects repeated -value name=payload pairs. Numeric payloads
// become number attribute values, everything else is a string.
type valueFlags map[string]types.AttributeValue

func (v valueFlags) String() string { return fmt.Sprintf("%d values", len(v)) }

func (v valueFlags) Set(s string) error {
	name, payload, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	if !strings.HasPrefix(name, ":") {
		name = ":" + name
	}
	if _, err := strconv.ParseFloat(payload, 64); err == nil {
		v[name] = &types.AttributeValueMemberN{Value: payload}
	} else {
		v[name] = &types.AttributeValueMemberS{Value: payload}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "table.yaml", "table config file")
	index := flag.String("index", "", "secondary index to search")
	keyCondition := flag.String("key-condition", "", "key condition expression; a scan is used when empty")
	filter := flag.String("filter", "", "filter expression")
	limit := flag.Int("limit", 0, "page size limit")
	countOnly := flag.Bool("count", false, "report the match count instead of items")
	profile := flag.String("profile", "", "shared AWS config profile")
	verbose := flag.Bool("v", false, "debug logging")
	values := valueFlags{}
	flag.Var(values, "value", "expression attribute value as name=payload (repeatable)")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	if err := run(context.Background(), *configPath, *index, *keyCondition, *filter, int32(*limit), *countOnly, *profile, values); err != nil {
		logger.Error("arborscan failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, index, keyCondition, filter string, limit int32, countOnly bool, profile string, values valueFlags) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using ambient environment")
	}

	cfg, err := mapper.LoadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, profile)
	if err != nil {
		return err
	}

	repo, err := mapper.New[map[string]any](client, cfg)
	if err != nil {
		return err
	}

	input := mapper.SearchInput{
		IndexName:                 index,
		KeyConditionExpression:    keyCondition,
		FilterExpression:          filter,
		Limit:                     limit,
		ExpressionAttributeValues: values,
	}
	if len(values) == 0 {
		input.ExpressionAttributeValues = nil
	}

	if countOnly {
		total, err := repo.Count(ctx, input)
		if err != nil {
			return err
		}
		fmt.Println(total)
		return nil
	}

	slog.Info("searching", "table", cfg.TableName, "index", index)

	enc := json.NewEncoder(os.Stdout)
	it := repo.Search(input)
	n := 0
	for {
		entity, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if entity == nil {
			break
		}
		if err := enc.Encode(entity); err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
		n++
	}

	slog.Info("search complete", "items", n)
	return nil
}

// newClient builds a DynamoDB client from the ambient AWS configuration.
// AWS_ACCESS_KEY/AWS_SECRET_KEY in the environment override the default
// credential chain, which keeps local runs against scoped keys simple.
func newClient(ctx context.Context, profile string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if key, secret := os.Getenv("AWS_ACCESS_KEY"), os.Getenv("AWS_SECRET_KEY"); key != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}
