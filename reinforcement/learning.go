package reinforcement

/*
Tabular Q-learning over the quantized ocean grid. Each episode starts at the requested origin
with time zero, walks up to the horizon under an epsilon-greedy policy, and updates Q in place.
The weather field is advanced once after every episode, never within one, so the conditions an
episode experiences are frozen at its start but the field keeps drifting across the run.

Episodes are strictly sequential: the update of episode n depends on the Q table and field left
by episode n-1. Parallelism is instead obtained per request, by giving every training run its
own field clone and its own table.
*/

import (
	"context"
	"math"
	"math/rand"
	"time"

	"searoute/grid_world"
	"searoute/weather"
)

// EpisodeStats summarizes one finished training episode.
type EpisodeStats struct {
	// Episode is the 1-based index of the episode.
	Episode     int     `json:"episode"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"totalReward"`
	ReachedGoal bool    `json:"reachedGoal"`
	// Epsilon is the exploration rate the episode ran with.
	Epsilon float64 `json:"epsilon"`
}

// ProgressFunc is a callback by which the training method can lend progress details.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
type ProgressFunc func(context.Context, EpisodeStats)

// Learner trains a fresh QTable per Train call against a weather field it does not own.
// A Learner and its field must not be shared by concurrent Train calls.
type Learner struct {
	params     Params
	codec      *grid_world.Codec
	field      *weather.Field
	rewards    *RewardModel
	rng        *rand.Rand
	progressFn ProgressFunc
}

// NewLearner builds a learner over the field. Params the loop cannot run with are replaced by
// their defaults: a decay outside (0,1] keeps epsilon constant, a non-positive horizon is the
// default horizon, and a negative epsilon floor is zero.
func NewLearner(params Params, codec *grid_world.Codec, field *weather.Field) *Learner {
	defaults := DefaultParams()
	if params.EpsilonDecay <= 0 || params.EpsilonDecay > 1 {
		params.EpsilonDecay = defaults.EpsilonDecay
	}
	if params.Horizon <= 0 {
		params.Horizon = defaults.Horizon
	}
	if params.EpsilonMin < 0 {
		params.EpsilonMin = defaults.EpsilonMin
	}

	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Learner{
		params:  params,
		codec:   codec,
		field:   field,
		rewards: NewRewardModel(field, params.Limits()),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// WithProgress sets the per-episode progress hook.
func (l *Learner) WithProgress(fn ProgressFunc) *Learner {
	l.progressFn = fn
	return l
}

// Train runs the given number of episodes from start toward end and returns the learned table.
// Cancellation is checked between episodes; on cancellation the partially trained table is
// returned alongside the context's error.
func (l *Learner) Train(
	ctx context.Context,
	start, end grid_world.Position,
	episodes int,
) (*QTable, error) {
	q := NewQTable(l.codec.NumStates())
	goal := newGoal(l.codec, l.params.GoalCheck, end)
	epsilon := l.params.Epsilon

	for ep := 1; ep <= episodes; ep++ {
		if err := ctx.Err(); err != nil {
			return q, err
		}

		stats := l.runEpisode(q, start, goal, epsilon)
		stats.Episode = ep
		stats.Epsilon = epsilon
		l.field.Advance()

		if l.progressFn != nil {
			l.progressFn(ctx, stats)
		}
		epsilon = math.Max(epsilon*l.params.EpsilonDecay, l.params.EpsilonMin)
	}

	return q, nil
}

func (l *Learner) runEpisode(
	q *QTable,
	start grid_world.Position,
	goal goal,
	epsilon float64,
) (stats EpisodeStats) {
	state := l.codec.Encode(start)
	for t := 0; t < l.params.Horizon; t++ {
		action := l.choose(q, state, epsilon)
		pos := l.codec.Step(l.codec.Decode(state), action)
		next := l.codec.Encode(pos)
		reward := l.rewards.Reward(pos, t)
		q.Update(state, action, reward, next, l.params.Alpha, l.params.Gamma)

		stats.Steps++
		stats.TotalReward += reward
		state = next
		if goal.reached(state) {
			stats.ReachedGoal = true
			return
		}
	}
	return
}

// choose is the epsilon-greedy policy: explore uniformly with probability epsilon, else exploit.
func (l *Learner) choose(q *QTable, s grid_world.State, epsilon float64) grid_world.Action {
	if l.rng.Float64() < epsilon {
		return grid_world.Action(l.rng.Intn(int(grid_world.NumActions)))
	}
	return q.ArgMax(s)
}

// goal evaluates arrival under the configured GoalCheck.
type goal struct {
	codec *grid_world.Codec
	check GoalCheck
	state grid_world.State
	end   grid_world.Position
}

func newGoal(codec *grid_world.Codec, check GoalCheck, end grid_world.Position) goal {
	return goal{
		codec: codec,
		check: check,
		state: codec.Encode(end),
		end:   end,
	}
}

func (g goal) reached(s grid_world.State) bool {
	if g.check == GoalDecoded {
		return g.codec.Decode(s) == g.end
	}
	return s == g.state
}
