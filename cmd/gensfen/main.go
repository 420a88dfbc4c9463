package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/klauspost/cpuid/v2"

	"github.com/ianfab/variant-nnue/internal/gensfen"
	"github.com/ianfab/variant-nnue/internal/nnue"
	"github.com/ianfab/variant-nnue/internal/sfen"
	"github.com/ianfab/variant-nnue/pkg/engine"
	"github.com/ianfab/variant-nnue/pkg/eval/material"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	var err = run()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

type Settings struct {
	Eval         string
	Architecture string
	Network      string
	Format       string
}

func run() error {
	var config, settings, err = parseSettings(os.Args[1:])
	if err != nil {
		return err
	}

	log.Printf("%+v", settings)
	log.Println("cpu", cpuid.CPU.BrandName, "logical cores", cpuid.CPU.LogicalCores)

	newEvaluator, err := evaluatorBuilder(settings)
	if err != nil {
		return err
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return gensfen.Run(ctx, config, newEvaluator)
}

func parseSettings(args []string) (gensfen.Config, Settings, error) {
	var config = gensfen.DefaultConfig()
	config.Threads = max(1, cpuid.CPU.LogicalCores)
	var settings = Settings{
		Eval:         "material",
		Architecture: nnue.DefaultArchitecture,
		Format:       config.Format.String(),
	}

	var fs = flag.NewFlagSet("gensfen", flag.ContinueOnError)
	fs.StringVar(&settings.Eval, "eval", settings.Eval, "Evaluation: material or nnue")
	fs.StringVar(&settings.Architecture, "arch", settings.Architecture, "Network architecture for -eval nnue")
	fs.StringVar(&settings.Network, "network", settings.Network, "Network file for -eval nnue")
	fs.StringVar(&settings.Format, "sfen_format", settings.Format, "Output format: bin or pack")

	fs.IntVar(&config.Threads, "threads", config.Threads, "Number of threads")
	fs.IntVar(&config.HashMB, "hash", config.HashMB, "Transposition table size per thread in MB")
	fs.Int64Var(&config.Seed, "seed", config.Seed, "Random seed, 0 for time based")
	fs.Int64Var(&config.Loop, "loop", config.Loop, "Number of samples to generate")
	fs.IntVar(&config.Depth, "depth", config.Depth, "Minimum search depth")
	fs.IntVar(&config.Depth2, "depth2", config.Depth2, "Maximum search depth")
	fs.Int64Var(&config.Nodes, "nodes", config.Nodes, "Node limit per search, 0 for none")
	fs.IntVar(&config.EvalLimit, "eval_limit", config.EvalLimit, "Resign score")
	fs.IntVar(&config.RandomMoveMinPly, "random_move_minply", config.RandomMoveMinPly, "First ply for random moves")
	fs.IntVar(&config.RandomMoveMaxPly, "random_move_maxply", config.RandomMoveMaxPly, "Last ply for random moves")
	fs.IntVar(&config.RandomMoveCount, "random_move_count", config.RandomMoveCount, "Random moves per game")
	fs.IntVar(&config.RandomMoveLikeApery, "random_move_like_apery", config.RandomMoveLikeApery, "Random king moves like Apery")
	fs.IntVar(&config.RandomMultiPV, "random_multi_pv", config.RandomMultiPV, "Pick random moves among the best N")
	fs.IntVar(&config.RandomMultiPVDiff, "random_multi_pv_diff", config.RandomMultiPVDiff, "Score window for multi PV random moves")
	fs.IntVar(&config.RandomMultiPVDepth, "random_multi_pv_depth", config.RandomMultiPVDepth, "Search depth for multi PV random moves")
	fs.IntVar(&config.WriteMinPly, "write_minply", config.WriteMinPly, "First ply written")
	fs.IntVar(&config.WriteMaxPly, "write_maxply", config.WriteMaxPly, "Last ply played")
	fs.StringVar(&config.OutputFileName, "output_file_name", config.OutputFileName, "Output file name without extension")
	fs.BoolVar(&config.RandomFileName, "random_file_name", config.RandomFileName, "Append a random suffix to the output name")
	fs.Int64Var(&config.SaveEvery, "save_every", config.SaveEvery, "Samples per output file, 0 for one file")
	fs.BoolVar(&config.WriteDrawGames, "write_out_draw_game_in_training_data_generation", config.WriteDrawGames, "Write drawn games")
	fs.BoolVar(&config.DetectDrawByConsecutiveLowScore, "detect_draw_by_consecutive_low_score", config.DetectDrawByConsecutiveLowScore, "Adjudicate draws by low scores")
	fs.BoolVar(&config.DetectDrawByInsufficientMaterial, "detect_draw_by_insufficient_mating_material", config.DetectDrawByInsufficientMaterial, "Adjudicate draws by insufficient material")
	fs.IntVar(&config.AdjDrawPly, "adj_draw_ply", config.AdjDrawPly, "First ply for low score draw adjudication")
	fs.IntVar(&config.AdjDrawCount, "adj_draw_cnt", config.AdjDrawCount, "Consecutive low scores for a draw")
	fs.IntVar(&config.AdjDrawScore, "adj_draw_score", config.AdjDrawScore, "Low score bound")
	fs.IntVar(&config.DedupHashSize, "dedup_hash_size", config.DedupHashSize, "Duplicate filter entries per thread")
	if err := fs.Parse(args); err != nil {
		return config, settings, err
	}
	if fs.NArg() != 0 {
		return config, settings, fmt.Errorf("unexpected arguments %v", fs.Args())
	}

	var err error
	config.Format, err = sfen.ParseFormat(settings.Format)
	if err != nil {
		return config, settings, err
	}
	return config, settings, nil
}

func evaluatorBuilder(settings Settings) (func() engine.Evaluator, error) {
	switch settings.Eval {
	case "material":
		return func() engine.Evaluator {
			return material.NewEvaluationService()
		}, nil
	case "nnue":
		var net, err = nnue.NewNetwork(settings.Architecture)
		if err != nil {
			return nil, err
		}
		if settings.Network != "" {
			if err := net.Load(settings.Network); err != nil {
				return nil, err
			}
		}
		log.Println("network", "architecture", net.Architecture, "structure", net.Structure())
		return func() engine.Evaluator {
			return nnue.NewEvaluator(net)
		}, nil
	default:
		return nil, fmt.Errorf("unknown eval %q", settings.Eval)
	}
}
