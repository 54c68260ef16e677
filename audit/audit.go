/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider resolves the actor responsible for the current mutation.
type Provider interface {
	CurrentAuditor(ctx context.Context) (string, bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, bool)

func (f ProviderFunc) CurrentAuditor(ctx context.Context) (string, bool) { return f(ctx) }

type actorKey struct{}

// WithActor binds id to ctx. Call it when a request starts; the binding ends
// with the context.
func WithActor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFrom returns the actor bound by WithActor.
func ActorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// Default returns the context actor and falls back to a random UUID when no
// actor was bound.
func Default() Provider {
	return ProviderFunc(func(ctx context.Context) (string, bool) {
		if id, ok := ActorFrom(ctx); ok {
			return id, true
		}
		return uuid.NewString(), true
	})
}

// Static always reports id.
func Static(id string) Provider {
	return ProviderFunc(func(context.Context) (string, bool) { return id, id != "" })
}

// Stamp holds the audit values applied by one mutation.
type Stamp struct {
	At time.Time
	By string
}

// Resolve asks p for the actor, tolerating a nil provider.
func Resolve(ctx context.Context, p Provider, at time.Time) Stamp {
	s := Stamp{At: at}
	if p == nil {
		return s
	}
	if id, ok := p.CurrentAuditor(ctx); ok {
		s.By = id
	}
	return s
}
