// Package diamondprice predicts diamond prices from cut, color, clarity,
// table and the x/y/z dimensions.
//
// A run loads a tab-separated table (or an .xlsx workbook), drops rows with a
// numeric value three or more standard deviations from its column mean,
// engineers five features, scales them, and fits either ordinary least
// squares or a random forest on ln(price). The fitted stages are saved as one
// versioned artifact that later prediction runs load and apply.
//
// # Quick Start
//
//	diamondprice train --data diamonds.tsv --model_output_path model.gob
//	diamondprice predict --data new.tsv --model_input_path model.gob --output_file predictions.txt
//
// From Go:
//
//	fs := afero.NewOsFs()
//	m, summary, err := diamond.Train(fs, "diamonds.tsv", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary.WriteTo(os.Stdout)
//	if err := diamond.Save(fs, "model.gob", m); err != nil {
//	    log.Fatal(err)
//	}
//
// # Packages
//
//   - dataset: table loading, outlier filter, log-price target
//   - features: ordinal encoding, zero imputation, log volume
//   - preprocessing: StandardScaler
//   - linear: LinearRegression (QR with SVD fallback)
//   - ensemble: RandomForestRegressor over CART trees
//   - pipeline: featurizer → transformers → regressor
//   - metrics: MAE, MSE, RMSE, R², explained variance, MAPE
//   - evaluate: held-out summary and scatter plot
//   - diamond: train/test split, training, prediction, model artifact
//   - config: YAML, .env and environment settings
//   - core/model: estimator state and gob persistence
//   - core/parallel: worker pool
//   - pkg/errors, pkg/log: typed errors and structured logging
package diamondprice
