package simulate

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/pipeline"
)

// Profile is a behavioural pattern used to shape a synthetic student.
type Profile string

const (
	ProfileFlowing    Profile = "flowing"
	ProfileGrinder    Profile = "grinder"
	ProfileGuesser    Profile = "guesser"
	ProfileStruggling Profile = "struggling"
	ProfileInactive   Profile = "inactive"
)

// Profiles lists every profile in generation order.
var Profiles = []Profile{ProfileFlowing, ProfileGrinder, ProfileGuesser, ProfileStruggling, ProfileInactive}

// studentNamespace seeds deterministic student IDs.
var studentNamespace = uuid.MustParse("5b0c8f5e-2f0a-4d55-9c39-6a1c2f1f7d10")

type courseTopics struct {
	name   string
	topics []string
}

var catalog = []courseTopics{
	{"4th Grade Math", []string{"Multi-Digit Multiplication", "Equivalent Fractions", "Place Value", "Area and Perimeter"}},
	{"Algebra 1", []string{"Linear Equations", "Systems of Equations", "Quadratic Functions", "Exponents"}},
	{"Geometry", []string{"Congruent Triangles", "Similarity", "Circles", "Trigonometric Ratios"}},
	{"AP Calculus AB", []string{"Limits", "Derivatives", "Chain Rule", "Integration by Substitution"}},
}

// shape bounds the random draws for one profile.
type shape struct {
	goalShare  [2]float64 // weekly XP relative to goal
	accuracy   [2]float64
	focus      [2]float64 // productive / engaged
	tasks      [2]int
	questions  [2]int
	reviewRate float64
}

var shapes = map[Profile]shape{
	ProfileFlowing:    {goalShare: [2]float64{1.0, 1.4}, accuracy: [2]float64{0.82, 0.97}, focus: [2]float64{0.8, 0.95}, tasks: [2]int{10, 18}, questions: [2]int{6, 12}, reviewRate: 0.3},
	ProfileGrinder:    {goalShare: [2]float64{0.8, 1.1}, accuracy: [2]float64{0.6, 0.75}, focus: [2]float64{0.6, 0.8}, tasks: [2]int{12, 22}, questions: [2]int{6, 12}, reviewRate: 0.2},
	ProfileGuesser:    {goalShare: [2]float64{0.7, 1.2}, accuracy: [2]float64{0.3, 0.55}, focus: [2]float64{0.4, 0.7}, tasks: [2]int{8, 16}, questions: [2]int{6, 12}, reviewRate: 0.1},
	ProfileStruggling: {goalShare: [2]float64{0.2, 0.5}, accuracy: [2]float64{0.35, 0.6}, focus: [2]float64{0.3, 0.6}, tasks: [2]int{3, 8}, questions: [2]int{5, 10}, reviewRate: 0.1},
}

// Generator builds synthetic activity inputs. The same seed yields the same
// population for the same reference time.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// NewGenerator creates a generator anchored at now.
func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now.UTC(),
	}
}

// Population generates n students, cycling through profiles.
func (g *Generator) Population(n int) []pipeline.Input {
	out := make([]pipeline.Input, n)
	for i := range out {
		out[i] = g.Student(i, Profiles[i%len(Profiles)])
	}
	return out
}

// Student generates one student of the given profile.
func (g *Generator) Student(index int, p Profile) pipeline.Input {
	course := catalog[g.rng.IntN(len(catalog))]
	goal := 30 + 10*g.rng.IntN(5)
	started := g.now.AddDate(0, 0, -(14 + g.rng.IntN(120)))

	in := pipeline.Input{
		Log: model.ActivityLog{
			StudentID: uuid.NewSHA1(studentNamespace, []byte(fmt.Sprintf("student-%d", index))).String(),
		},
		Schedule: model.Schedule{DailyXPGoal: goal},
		Course:   model.Course{Name: course.name, StartedAt: &started},
	}
	if p == ProfileInactive {
		return in
	}

	sh := shapes[p]
	numTasks := g.between(sh.tasks)
	tasks := make([]model.Task, 0, numTasks)
	var questions, correct int
	for t := 0; t < numTasks; t++ {
		q := g.between(sh.questions)
		c := int(float64(q)*g.uniform(sh.accuracy) + 0.5)
		if c > q {
			c = q
		}
		typ := model.TaskLearning
		if g.rng.Float64() < sh.reviewRate {
			typ = model.TaskReview
		}
		// Spread tasks over the past week, oldest first.
		at := g.now.Add(-time.Duration(numTasks-t) * (7 * 24 * time.Hour) / time.Duration(numTasks+1))
		tasks = append(tasks, model.Task{
			Type:             typ,
			Topic:            course.topics[g.rng.IntN(len(course.topics))],
			Questions:        q,
			QuestionsCorrect: c,
			CompletedAt:      &at,
		})
		questions += q
		correct += c
	}

	engaged := numTasks * (600 + g.rng.IntN(900))
	productive := int(float64(engaged) * g.uniform(sh.focus))
	in.Log.XPAwarded = int(float64(goal*5) * g.uniform(sh.goalShare))
	in.Log.TimeEngaged = engaged
	in.Log.TimeProductive = productive
	in.Log.TimeElapsed = engaged + g.rng.IntN(engaged/2+1)
	in.Log.Questions = questions
	in.Log.QuestionsCorrect = correct
	in.Log.NumTasks = numTasks
	in.Log.Tasks = tasks
	return in
}

func (g *Generator) between(r [2]int) int {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + g.rng.IntN(r[1]-r[0]+1)
}

func (g *Generator) uniform(r [2]float64) float64 {
	return r[0] + g.rng.Float64()*(r[1]-r[0])
}
