package sqlinline

const QUpsertLeaderboard = `--sql b9bfa408-6a5e-4752-80a1-89c7d1715ffd
insert into leaderboard(identity, total, donations, last_at)
values ($1::text, $2::numeric, 1, $3::timestamptz)
on conflict (identity) do update
set total = leaderboard.total + excluded.total,
    donations = leaderboard.donations + 1,
    last_at = greatest(leaderboard.last_at, excluded.last_at);
`

const QTopLeaderboard = `--sql e716d6ab-6e0d-46f1-abbb-7ee3960d0d8e
select identity, total::text, donations, last_at
from leaderboard
order by total desc, identity asc
limit $1::int;
`
