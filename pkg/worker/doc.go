// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package worker provides the background execution service used for
post-receipt processing.

A Pool runs a fixed number of workers. Tasks are submitted either
fire-and-forget or with a result future:

	pool := worker.NewPool(nil, logger)

	pool.Run(func() error {
	    return sendReceipt(msg)
	})

	future := worker.Supply(pool, func() (*Report, error) {
	    return buildReport(msg)
	})
	report, ok := future.Wait()

Task failures are logged, never propagated to the submitter; a failed
Supply resolves to the zero value. Drain stops intake and blocks until
every queued and in-flight task has finished.
*/
package worker
