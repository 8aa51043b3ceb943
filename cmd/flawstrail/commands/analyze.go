// cmd/flawstrail/commands/analyze.go
package commands

import (
	"errors"
	"fmt"
	"os"

	"flawstrail/internal/aggregate"
	"flawstrail/internal/config"
	"flawstrail/internal/detect"
	"flawstrail/internal/interchange"
	"flawstrail/internal/loader"
	"flawstrail/internal/model"
	"flawstrail/internal/normalize"
	"flawstrail/internal/prompt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "샤드 로드 → 정규화 → 집계/탐지 → 산출물(analyze.json) 생성",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// S3 미러는 선택 단계. 버킷 미설정이면 조용히 건너뛴다.
		if cfg.S3Bucket != "" {
			mirror, err := loader.NewS3Mirror(ctx, cfg, mtr)
			if err != nil {
				return fmt.Errorf("s3 mirror init: %w", err)
			}
			if err := mirror.Sync(ctx); err != nil {
				return fmt.Errorf("s3 mirror sync: %w", err)
			}
		}

		res, err := loader.Load(ctx, cfg, mtr)
		if err != nil {
			if errors.Is(err, loader.ErrNoData) {
				return fmt.Errorf("로드된 이벤트가 없음 — SHARD_DIR(%s) 에 %s 샤드가 있는지 확인: %w",
					cfg.ShardDir, cfg.ShardPattern, err)
			}
			return err
		}

		events := normalize.All(res.Records, mtr)
		log.Info().Str("events", humanize.Comma(int64(len(events)))).
			Msg("정규화 완료")

		doc := buildDocument(events, cfg)

		if err := interchange.Write(cfg.InterchangePath, doc); err != nil {
			return err
		}
		log.Info().Str("path", cfg.InterchangePath).Msg("산출물 기록")

		// 최종 카운터 덤프 (운영 진단용)
		fmt.Fprint(os.Stderr, mtr.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

// buildDocument 는 정규화된 이벤트 전체에서 산출물 문서를 조립한다.
// 키 순서는 소비자(report/ask)와 diff 재현성에 대한 계약이므로
// 여기서 고정된다.
func buildDocument(events []model.Event, cfg config.Config) *interchange.Document {
	stats := aggregate.Overview(events)
	dailies := aggregate.DailySummaries(events, cfg.DailyThreshold)
	profiles := aggregate.Profiles(events, cfg.KeyActors)
	anomalies := detect.AnomalousDays(events)
	phases := detect.AttackPhases(events, detect.PhaseParams{
		ReconActor:      cfg.ReconActor,
		ExplosionPrefix: cfg.ExplosionPrefix,
		SignatureAction: cfg.SignatureAction,
	})
	ipIntel := aggregate.IPProfiles(events, cfg.TopIPs)
	shared := aggregate.SharedIPs(events, cfg.SharedIPScan)
	errSummary := aggregate.Errors(events, 10, cfg.KeyActors)
	hourly := aggregate.Hourly(events, cfg.HourlyMinEvents)

	// actor 별 세션 시퀀스 (키 순서 = KeyActors 순서)
	sessParams := detect.SessionParams{
		Gap:        cfg.SessionGap,
		MinEvents:  cfg.SessionMinEvents,
		MaxSess:    cfg.SessionMax,
		MaxActions: cfg.SessionMaxActions,
	}
	sequences := interchange.NewMap()
	sessByActor := make(map[string][]any)
	for _, actor := range cfg.KeyActors {
		list := interchange.SessionsList(detect.Sessions(events, actor, sessParams))
		sequences.Set(actor, list)
		sessByActor[actor] = list
	}

	statsM := interchange.StatsMap(stats)
	dailiesL := interchange.DailySummariesList(dailies)
	profilesM := interchange.ProfilesMap(profiles)
	phasesM := interchange.PhasesMap(phases)
	ipIntelM := interchange.IPIntelMap(ipIntel)
	sharedL := interchange.SharedIPsList(shared)
	errsM := interchange.ErrorSummaryMap(errSummary)
	hourlyL := interchange.HourlyList(hourly)

	// 행동 시퀀스 비교 프롬프트: 정찰 actor vs 그 외 첫 key actor
	exploitActor := ""
	for _, a := range cfg.KeyActors {
		if a != cfg.ReconActor {
			exploitActor = a
			break
		}
	}

	prompts := interchange.NewMap(
		interchange.Pair{Key: "narrative", Val: prompt.Narrative(dailiesL, profilesM)},
		interchange.Pair{Key: "user_comparison", Val: prompt.UserComparison(profilesM)},
		interchange.Pair{Key: "timeline", Val: prompt.Timeline(phasesM, profilesM)},
		interchange.Pair{Key: "attack_phases", Val: prompt.AttackPhases(phasesM)},
		interchange.Pair{Key: "ip_intelligence", Val: prompt.IPIntelligence(ipIntelM)},
		interchange.Pair{Key: "behavioral_sequences", Val: prompt.BehavioralSequences(
			cfg.ReconActor, sessByActor[cfg.ReconActor],
			exploitActor, sessByActor[exploitActor])},
		interchange.Pair{Key: "error_forensics", Val: prompt.ErrorForensics(errsM)},
		interchange.Pair{Key: "correlations", Val: prompt.Correlations(sharedL)},
		interchange.Pair{Key: "explosion_timeline", Val: prompt.ExplosionTimeline(hourlyL)},
		interchange.Pair{Key: "qa_context", Val: prompt.QAContext(statsM)},
	)

	return interchange.NewMap(
		interchange.Pair{Key: "statistics", Val: statsM},
		interchange.Pair{Key: "daily_summaries", Val: dailiesL},
		interchange.Pair{Key: "user_profiles", Val: profilesM},
		interchange.Pair{Key: "anomalies", Val: interchange.AnomaliesMap(anomalies)},
		interchange.Pair{Key: "attack_phases", Val: phasesM},
		interchange.Pair{Key: "ip_intelligence", Val: ipIntelM},
		interchange.Pair{Key: "behavioral_sequences", Val: sequences},
		interchange.Pair{Key: "error_analysis", Val: errsM},
		interchange.Pair{Key: "correlations", Val: sharedL},
		interchange.Pair{Key: "hourly_explosion", Val: hourlyL},
		interchange.Pair{Key: "prompts", Val: prompts},
	)
}
