package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/klauspost/cpuid/v2"

	"github.com/ianfab/variant-nnue/internal/convert"
	"github.com/ianfab/variant-nnue/internal/learn"
	"github.com/ianfab/variant-nnue/internal/sfen"
	"github.com/ianfab/variant-nnue/internal/shuffle"
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
	Mode           string
	OutputFileName string
	Format         string
	BufferSize     int
	PlyMinimum     int
	PlyMaximum     int
	SfenFormat     sfen.Format
}

func run() error {
	var config, settings, err = parseSettings(os.Args[1:])
	if err != nil {
		return err
	}

	log.Printf("%+v", settings)
	log.Println("cpu", cpuid.CPU.BrandName, "logical cores", cpuid.CPU.LogicalCores)

	var format = settings.SfenFormat
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch settings.Mode {
	case "learn":
		return learn.Run(ctx, config)
	case "shuffle", "shuffleq", "shufflem":
		var shuffleConfig = shuffle.DefaultConfig()
		shuffleConfig.Files = config.Files
		shuffleConfig.Format = format
		shuffleConfig.BufferSize = settings.BufferSize
		shuffleConfig.Seed = config.Seed
		shuffleConfig.Threads = config.Threads
		if settings.OutputFileName != "" {
			shuffleConfig.Output = settings.OutputFileName
		}
		switch settings.Mode {
		case "shuffle":
			return shuffle.Shuffle(ctx, shuffleConfig)
		case "shuffleq":
			return shuffle.ShuffleQuick(ctx, shuffleConfig)
		default:
			return shuffle.ShuffleInMemory(ctx, shuffleConfig)
		}
	case "convert_plain", "convert_bin":
		if settings.OutputFileName == "" {
			return fmt.Errorf("%v: output_file_name is required", settings.Mode)
		}
		var convertConfig = convert.DefaultConfig()
		convertConfig.Files = config.Files
		convertConfig.Output = settings.OutputFileName
		convertConfig.Format = format
		convertConfig.MinPly = settings.PlyMinimum
		convertConfig.MaxPly = settings.PlyMaximum
		if settings.Mode == "convert_plain" {
			_, err = convert.ToPlain(ctx, convertConfig)
		} else {
			_, err = convert.ToBin(ctx, convertConfig)
		}
		return err
	default:
		return fmt.Errorf("unknown mode %q", settings.Mode)
	}
}

func parseSettings(args []string) (learn.Config, Settings, error) {
	var config = learn.DefaultConfig()
	config.Threads = max(1, cpuid.CPU.LogicalCores)
	var settings = Settings{
		Mode:       "learn",
		Format:     sfen.FormatBin.String(),
		BufferSize: shuffle.DefaultConfig().BufferSize,
		PlyMaximum: convert.DefaultConfig().MaxPly,
	}

	var fs = flag.NewFlagSet("learn", flag.ContinueOnError)
	fs.StringVar(&settings.Mode, "mode", settings.Mode, "learn, shuffle, shuffleq, shufflem, convert_plain or convert_bin")
	fs.StringVar(&settings.OutputFileName, "output_file_name", settings.OutputFileName, "Output of shuffle and convert modes")
	fs.StringVar(&settings.Format, "sfen_format", settings.Format, "Output format of shuffle and convert_bin: bin or pack")
	fs.IntVar(&settings.BufferSize, "buffer_size", settings.BufferSize, "Records per temporary shard in shuffle mode")
	fs.IntVar(&settings.PlyMinimum, "ply_minimum", settings.PlyMinimum, "Minimum game ply kept by convert_bin")
	fs.IntVar(&settings.PlyMaximum, "ply_maximum", settings.PlyMaximum, "Maximum game ply kept by convert_bin")

	fs.IntVar(&config.Threads, "threads", config.Threads, "Number of threads")
	fs.Int64Var(&config.Seed, "seed", config.Seed, "Random seed, 0 for time based")
	fs.StringVar(&config.BaseDir, "basedir", config.BaseDir, "Base directory of targetdir")
	fs.StringVar(&config.TargetDir, "targetdir", config.TargetDir, "Train on every file in this directory")
	fs.IntVar(&config.Loop, "loop", config.Loop, "Passes over the training files")
	fs.StringVar(&config.Architecture, "arch", config.Architecture, "Network architecture")
	fs.StringVar(&config.InitialNetwork, "network", config.InitialNetwork, "Initial network file, random when empty")
	fs.StringVar(&config.OutputDir, "eval_save_dir", config.OutputDir, "Directory of saved networks")
	fs.StringVar(&config.NNOptions, "nn_options", config.NNOptions, "Trainer options, e.g. momentum=0.9")
	fs.Int64Var(&config.BatchSize, "batchsize", config.BatchSize, "Samples per parameter update")
	fs.IntVar(&config.NNBatchSize, "nn_batch_size", config.NNBatchSize, "Samples per trainer mini-batch")
	fs.Float64Var(&config.LearningRate, "lr", config.LearningRate, "Learning rate")
	fs.Float64Var(&config.Lambda, "lambda", config.Lambda, "Weight of the teacher score against the game result")
	fs.Float64Var(&config.Lambda2, "lambda2", config.Lambda2, "Lambda beyond lambda_limit")
	fs.Float64Var(&config.LambdaLimit, "lambda_limit", config.LambdaLimit, "Teacher score where lambda2 takes over")
	fs.IntVar(&config.ReductionGamePly, "reduction_gameply", config.ReductionGamePly, "Skip early plies with this probability scale")
	fs.IntVar(&config.EvalLimit, "eval_limit", config.EvalLimit, "Skip samples with larger teacher scores")
	fs.BoolVar(&config.SaveOnlyOnce, "save_only_once", config.SaveOnlyOnce, "Overwrite one network instead of numbered ones")
	fs.BoolVar(&config.NoShuffle, "no_shuffle", config.NoShuffle, "Keep the file order of samples")
	fs.Float64Var(&config.NewbobDecay, "newbob_decay", config.NewbobDecay, "Learning rate decay on rejected checkpoints, 1 disables")
	fs.IntVar(&config.NewbobNumTrials, "newbob_num_trials", config.NewbobNumTrials, "Rejected checkpoints before stopping")
	fs.Int64Var(&config.AutoLRDrop, "auto_lr_drop", config.AutoLRDrop, "Decay the learning rate every N samples")
	fs.Int64Var(&config.EvalSaveInterval, "eval_save_interval", config.EvalSaveInterval, "Samples between checkpoints")
	fs.Int64Var(&config.LossOutputInterval, "loss_output_interval", config.LossOutputInterval, "Samples between loss reports")
	fs.StringVar(&config.ValidationSetFileName, "validation_set_file_name", config.ValidationSetFileName, "Validation samples, taken from the training data when empty")
	fs.IntVar(&config.SfenForMSESize, "sfen_for_mse_size", config.SfenForMSESize, "Validation samples taken from the training data")
	fs.BoolVar(&config.UseDrawGamesInTraining, "use_draw_games_in_training", config.UseDrawGamesInTraining, "Train on drawn games")
	fs.BoolVar(&config.UseDrawGamesInValidation, "use_draw_games_in_validation", config.UseDrawGamesInValidation, "Validate on drawn games")
	fs.BoolVar(&config.SkipDuplicatedPositionsInTraining, "skip_duplicated_positions_in_training", config.SkipDuplicatedPositionsInTraining, "Skip repeated positions")
	fs.Float64Var(&config.WinningProbabilityCoefficient, "winning_probability_coefficient", config.WinningProbabilityCoefficient, "Score scale of the win probability")
	fs.BoolVar(&config.UseWDL, "use_wdl", config.UseWDL, "Use the win-draw-loss model")
	fs.Float64Var(&config.SrcScoreMinValue, "src_score_min_value", config.SrcScoreMinValue, "Teacher score rescaling")
	fs.Float64Var(&config.SrcScoreMaxValue, "src_score_max_value", config.SrcScoreMaxValue, "Teacher score rescaling")
	fs.Float64Var(&config.DestScoreMinValue, "dest_score_min_value", config.DestScoreMinValue, "Teacher score rescaling")
	fs.Float64Var(&config.DestScoreMaxValue, "dest_score_max_value", config.DestScoreMaxValue, "Teacher score rescaling")
	fs.IntVar(&config.ReadSize, "read_size", config.ReadSize, "Samples read and shuffled at once")
	fs.IntVar(&config.HashMB, "hash", config.HashMB, "Transposition table size per thread in MB")
	fs.BoolVar(&config.Resume, "resume", config.Resume, "Continue from the best recorded checkpoint")
	if err := fs.Parse(args); err != nil {
		return config, settings, err
	}
	config.Files = fs.Args()

	switch settings.Mode {
	case "learn", "shuffle", "shuffleq", "shufflem", "convert_plain", "convert_bin":
	default:
		return config, settings, fmt.Errorf("unknown mode %q", settings.Mode)
	}
	var err error
	settings.SfenFormat, err = sfen.ParseFormat(settings.Format)
	if err != nil {
		return config, settings, err
	}
	return config, settings, nil
}
