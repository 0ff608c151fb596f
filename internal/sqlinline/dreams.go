package sqlinline

const QInsertDream = `--sql 3bf10b2f-6012-40f7-89df-1e3499a9f705
insert into dreams (
  id, user_id, title, description, is_public,
  generate_story, generate_music, generate_comic,
  story_status, music_status, comic_status
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`

const QSelectDream = `--sql dd1848a5-8fb8-4827-9ae4-664b0b95d3ab
select id, user_id, title, description, is_public,
       generate_story, generate_music, generate_comic,
       story_status, music_status, comic_status,
       created_at, updated_at
from dreams
where id = $1;
`

const QSelectDreamsByUser = `--sql a406e892-1168-4fe1-8993-ff1cba15b06f
select id, user_id, title, description, is_public,
       generate_story, generate_music, generate_comic,
       story_status, music_status, comic_status,
       created_at, updated_at
from dreams
where user_id = $1
order by created_at desc;
`

const QSelectPublicDreams = `--sql 8e3b917d-52a4-4f73-9c0d-13e015945b2b
select id, user_id, title, description, is_public,
       generate_story, generate_music, generate_comic,
       story_status, music_status, comic_status,
       created_at, updated_at
from dreams
where is_public
order by created_at desc
limit $1;
`

const QDeleteDream = `--sql 1eae9120-b1b2-41d6-857d-b427516411fd
delete from dreams
where id = $1 and user_id = $2;
`

const QSelectDreamStatus = `--sql a8a64d17-9940-497a-ab1e-d9e2082a623c
select story_status, music_status, comic_status
from dreams
where id = $1;
`

const QUpdateStoryStatus = `--sql d6317d2e-6743-4447-b8e1-3124db47d45a
update dreams
set story_status = $2, updated_at = now()
where id = $1 and story_status not in ('COMPLETED', 'FAILED');
`

const QUpdateMusicStatus = `--sql 3917e33a-161b-4729-a438-8c3a521cd1e5
update dreams
set music_status = $2, updated_at = now()
where id = $1 and music_status not in ('COMPLETED', 'FAILED');
`

const QUpdateComicStatus = `--sql 51e3306e-34e2-4b6b-81e1-bd11dd4a6708
update dreams
set comic_status = $2, updated_at = now()
where id = $1 and comic_status not in ('COMPLETED', 'FAILED');
`

const QInsertStory = `--sql 54d3242b-6ebb-4aed-bd2c-dfc7301be1c9
insert into stories (id, dream_id, title, content, genre, word_count)
values ($1, $2, $3, $4, $5, $6);
`

const QSelectStoryByDream = `--sql 07a10e8e-6662-4587-ab3d-b14d7d4b578b
select id, dream_id, title, content, genre, word_count, created_at
from stories
where dream_id = $1;
`

const QInsertMusic = `--sql 18fdab43-8cae-4d05-bd14-91d963b7ff54
insert into music (id, dream_id, title, description, genre, task_id)
values ($1, $2, $3, $4, $5, nullif($6, ''));
`

const QSelectMusicByDream = `--sql ccd96207-ca88-4828-941b-cb1db4bea891
select id, dream_id, title, description, genre, coalesce(task_id, ''), created_at
from music
where dream_id = $1;
`

const QSelectMusicByTaskID = `--sql e76670e6-b4b6-4247-b323-d77108fd5e4f
select id, dream_id, title, description, genre, coalesce(task_id, ''), created_at
from music
where task_id = $1;
`

const QInsertMusicTrack = `--sql 14091150-f70f-4f65-97da-2be703496aba
insert into music_tracks (
  id, music_id, suno_id, title, audio_url, stream_url, image_url,
  duration, prompt, model_name, tags
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`

const QSelectMusicTracks = `--sql 02390e55-b771-45c4-92bf-02a958905bd2
select id, music_id, suno_id, title, audio_url, stream_url, image_url,
       duration, prompt, model_name, tags, created_at
from music_tracks
where music_id = $1
order by created_at;
`

const QInsertComic = `--sql db93e22b-e929-481c-bb2a-0375d5e28888
insert into comics (id, dream_id, title, description, comic_url)
values ($1, $2, $3, $4, $5);
`

const QSelectComicByDream = `--sql 37d3c7ac-ee73-443e-8958-1d31e7efce8e
select id, dream_id, title, description, comic_url, created_at
from comics
where dream_id = $1;
`

const QInsertComicPanel = `--sql 0bca97d4-0f08-4041-a3d3-401eb22d35b8
insert into comic_panels (id, comic_id, panel_number, image_url, text, description)
values ($1, $2, $3, $4, $5, $6);
`

const QSelectComicPanels = `--sql 21a251fd-0960-4412-9f0e-05c4d96bac5d
select id, comic_id, panel_number, image_url, text, description
from comic_panels
where comic_id = $1
order by panel_number;
`
