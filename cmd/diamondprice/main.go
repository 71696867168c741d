// Command diamondprice trains a diamond price model or applies a saved one.
//
//	diamondprice train --data diamonds.tsv --model_output_path model.gob [--tree_model]
//	diamondprice predict --data new.tsv --model_input_path model.gob --output_file predictions.txt
package main

import (
	"io"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/spf13/afero"

	"github.com/YuminosukeSato/diamondprice/config"
	"github.com/YuminosukeSato/diamondprice/diamond"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

// Modes accepted as the positional argument.
const (
	ModeTrain   = "train"
	ModePredict = "predict"
)

type args struct {
	Mode            string  `arg:"positional,required" help:"train or predict"`
	Data            string  `arg:"--data,required" help:"delimited file (or .xlsx) with input data"`
	ModelOutputPath string  `arg:"--model_output_path" default:"model.gob" help:"file to save the trained model to"`
	ModelInputPath  string  `arg:"--model_input_path" default:"model.gob" help:"model to load for prediction"`
	OutputFile      string  `arg:"--output_file" default:"predictions.txt" help:"where to save the predictions"`
	TreeModel       bool    `arg:"--tree_model" help:"use a random forest instead of linear regression"`
	NoTreeModel     bool    `arg:"--no_tree_model" help:"use linear regression (the default)"`
	Config          string  `arg:"--config" help:"YAML configuration file"`
	Sep             *string `arg:"--sep" help:"input field separator (tab, comma, or a single character)"`
	Seed            *uint64 `arg:"--seed" help:"split and forest seed"`
	PlotFile        *string `arg:"--plot_file" help:"write the held-out scatter to this image file"`
	RetainedFile    string  `arg:"--retained_file" help:"also write the input row index of every prediction"`
	LogLevel        *string `arg:"--log_level" help:"debug, info, warn or error"`
}

func (args) Description() string {
	return "Fit or apply a diamond price regression model."
}

func main() {
	var a args
	arg.MustParse(&a)

	err := errors.SafeExecute("diamondprice", func() error {
		return run(afero.NewOsFs(), a, os.Stdout)
	})
	if err != nil {
		log.GetLogger().Error("Command failed", err)
		os.Exit(1)
	}
}

func run(fs afero.Fs, a args, stdout io.Writer) error {
	if a.Mode != ModeTrain && a.Mode != ModePredict {
		return errors.NewValidationError("mode", "must be train or predict", a.Mode)
	}
	if a.TreeModel && a.NoTreeModel {
		return errors.NewValidationError("tree_model", "conflicts with --no_tree_model", true)
	}

	cfg, err := config.LoadFs(fs, a.Config, config.DefaultEnvFile)
	if err != nil {
		return err
	}
	if a.Sep != nil {
		cfg.Separator = *a.Sep
	}
	if a.Seed != nil {
		cfg.Seed = *a.Seed
	}
	if a.PlotFile != nil {
		cfg.Plot.Path = *a.PlotFile
	}
	if a.LogLevel != nil {
		cfg.LogLevel = *a.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("diamondprice")
	opts := append(cfg.DiamondOptions(), diamond.WithLogger(logger))

	switch a.Mode {
	case ModeTrain:
		m, summary, err := diamond.Train(fs, a.Data, a.TreeModel, opts...)
		if err != nil {
			return err
		}
		if _, err := summary.WriteTo(stdout); err != nil {
			return errors.Wrap(err, "write summary")
		}
		if err := diamond.Save(fs, a.ModelOutputPath, m); err != nil {
			return err
		}
		logger.Info("Model saved",
			log.OperationKey, log.OperationSave,
			log.PathKey, a.ModelOutputPath,
			log.RunIDKey, m.RunID,
		)

	case ModePredict:
		m, err := diamond.Load(fs, a.ModelInputPath)
		if err != nil {
			return err
		}
		logger.Debug("Model loaded",
			log.OperationKey, log.OperationLoad,
			log.PathKey, a.ModelInputPath,
			log.RunIDKey, m.RunID,
			log.ConfigVersionKey, m.FormatVersion,
		)
		pred, err := diamond.Predict(fs, a.Data, m, opts...)
		if err != nil {
			return err
		}
		if err := diamond.WritePredictions(fs, a.OutputFile, pred.Prices); err != nil {
			return err
		}
		if a.RetainedFile != "" {
			if err := diamond.WriteRetained(fs, a.RetainedFile, pred.Retained); err != nil {
				return err
			}
		}
		logger.Info("Predictions written", log.PathKey, a.OutputFile, log.PredsKey, len(pred.Prices))
	}
	return nil
}
