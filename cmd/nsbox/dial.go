// Copyright 2024 The nsbox Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"github.com/cenkalti/backoff"

	"github.com/nsbox/nsbox/pkg/control"
)

// dial connects to the control plane, retrying with backoff for a moment in
// case the supervisor is still coming up (e.g. right after a service
// restart) rather than failing a script on the very first attempt.
func dial() (*control.Client, error) {
	var client *control.Client
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectRetryBudget

	op := func() error {
		c, err := control.Dial(*socketAddr)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return client, nil
}
