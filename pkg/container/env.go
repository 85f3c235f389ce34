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

package container

// Well-known environment variable names the launcher and init install into
// the application's environment (spec §4.5), named after the original's own
// NORTHSTAR_CONSOLE convention.
const (
	EnvName    = "NSBOX_NAME"
	EnvVersion = "NSBOX_VERSION"
	EnvConsole = "NSBOX_CONSOLE"
)
