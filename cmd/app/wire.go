//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/yanqian/mindcheck/internal/bootstrap"
	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/domain/auth"
	"github.com/yanqian/mindcheck/internal/infra/config"
	httpiface "github.com/yanqian/mindcheck/internal/interface/http"
	"github.com/yanqian/mindcheck/pkg/logger"
)

func initializeApp(ctx context.Context) (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideAuthConfig,
		provideAssessmentConfig,
		provideGuidanceConfig,
		provideStorage,
		provideAuthRepository,
		provideUserLookup,
		provideAssessmentRepository,
		provideTextGenerator,
		provideFeatureStats,
		provideClassifier,
		provideLimiter,
		auth.NewService,
		assessment.NewGuidanceGenerator,
		assessment.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
