// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used for RPC call
// deadlines, activity timestamps, and synthetic message ids.
//
// Production code takes a Clock instead of calling time.Now or
// time.AfterFunc directly. Real() wraps the time package. Fake()
// returns a clock that stands still until the test advances it, so a
// 30-second RPC timeout can be exercised without waiting 30 seconds:
//
//	fake := clock.Fake(time.Unix(1700000000, 0))
//	client := rpc.NewClient(rpc.ClientConfig{Clock: fake, ...})
//	go client.Call(ctx, "send_message", params)
//	fake.WaitForTimers(1)         // the call has armed its deadline
//	fake.Advance(rpc.CallTimeout) // the deadline fires
package clock
