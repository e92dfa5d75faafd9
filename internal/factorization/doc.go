// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package factorization fits a biased latent-factor model to sparse
// (user, item, value) observations with stochastic gradient descent and
// answers point queries for the predicted value of a pair.
//
// # Vector Layout
//
// Every user and item owns a vector of rank = Factors + 3 values. The first
// three slots are reserved so that a single dot product yields
// globalMean + userBias + itemBias + latent interaction:
//
//	slot   user side        item side
//	0      global mean      1
//	1      user bias        1
//	2      1                item bias
//	3..    latent factors   latent factors
//
// Only the user bias, the item bias and the latent slots are ever written by
// the update rule; the constant slots keep their initial values for the
// lifetime of a fit.
//
// # Training
//
// Fit initializes both factor matrices and then runs Config.Epochs epochs of
// len(log) single-sample updates. By default samples are drawn uniformly with
// replacement, so an epoch is an iteration budget rather than a full pass;
// SamplingShuffle switches to a shuffled pass over the log. The learning rate
// of epoch i is
//
//	mu0 * decay^(i-1) * (i + stepOffset)^forgetting
//
// which is constant with the default decay of 1 and forgetting exponent of 0.
//
// # Usage
//
//	cfg := factorization.DefaultConfig()
//	cfg.Factors = 32
//
//	engine, err := factorization.NewEngine(numUsers, numItems, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := engine.Fit(ctx, observations); err != nil {
//	    return err
//	}
//	score, err := engine.Predict(userID, itemID)
//
// # Thread Safety
//
// Training is strictly sequential. Fit holds an exclusive lock for its whole
// duration; Predict and the other readers take a shared lock, so queries
// block while a fit is running.
package factorization
